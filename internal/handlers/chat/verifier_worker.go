package handlers

import (
	"context"
	"time"
)

// Start launches the expiry backstop: a periodic sweep that resolves
// pending verifications whose timers were lost, e.g. across a restart.
func (v *Verifier) Start(ctx context.Context) error {
	v.startStopMutex.Lock()
	defer v.startStopMutex.Unlock()
	if v.started {
		return nil
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	v.workerCancel = cancel
	v.workerWG.Add(1)
	go func() {
		defer v.workerWG.Done()
		ticker := time.NewTicker(expiredVerificationsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				v.processExpiredVerifications(workerCtx)
			}
		}
	}()

	v.started = true
	v.logger.Info("expiry backstop started")
	return nil
}

func (v *Verifier) Stop(ctx context.Context) error {
	v.startStopMutex.Lock()
	defer v.startStopMutex.Unlock()
	if !v.started {
		return nil
	}
	v.workerCancel()
	v.workerWG.Wait()
	v.started = false
	v.logger.Info("expiry backstop stopped")
	return nil
}

func (v *Verifier) processExpiredVerifications(ctx context.Context) {
	entry := v.logger.WithField("method", "processExpiredVerifications")

	expired, err := v.store.GetExpiredVerifications(ctx, time.Now())
	if err != nil {
		entry.WithError(err).Error("cant list expired verifications")
		return
	}
	for _, verification := range expired {
		settings, err := v.settings(ctx, verification.ChatID)
		if err != nil {
			entry.WithError(err).WithField("chat_id", verification.ChatID).Error("cant load settings")
			continue
		}
		v.cancelResolutionJobs(verification.ChatID, verification.UserID)
		v.expireVerification(ctx, verification.ChatID, verification.UserID, settings.GetKickDuration())
		v.deleteMessageQuietly(ctx, verification.ChatID, verification.JoinMessageID)
		v.deleteMessageQuietly(ctx, verification.ChatID, verification.ChallengeMessageID)
	}
	if len(expired) > 0 {
		entry.WithField("count", len(expired)).Info("swept expired verifications")
	}
}
