package handlers

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Callback payloads ride inside inline-keyboard buttons as pipe-delimited
// strings:
//
//	auth_admin|{pass|kick|unban}|{user_id}
//	auth_challenge|{user_id}|{question_id}|{answer_id}
type (
	CallbackKind string
	AdminVerdict string

	// Callback is the parsed tagged variant of a button payload.
	Callback struct {
		Kind    CallbackKind
		Verdict AdminVerdict // admin payloads only
		UserID  int64

		QuestionID int64 // challenge payloads only
		AnswerID   int64 // challenge payloads only
	}
)

const (
	CallbackAdmin     CallbackKind = "auth_admin"
	CallbackChallenge CallbackKind = "auth_challenge"

	VerdictPass  AdminVerdict = "pass"
	VerdictKick  AdminVerdict = "kick"
	VerdictUnban AdminVerdict = "unban"
)

var (
	errMalformedCallback = errors.New("malformed callback payload")
	errUnknownAction     = errors.New("unknown callback action")
)

// isVerificationCallback is the cheap dispatch test: does this payload
// belong to the verification flow at all.
func isVerificationCallback(data string) bool {
	return strings.HasPrefix(data, string(CallbackAdmin)+"|") ||
		strings.HasPrefix(data, string(CallbackChallenge)+"|")
}

// parseCallback validates strictly: malformed payloads are rejected
// distinctly from structurally valid payloads carrying an unknown action.
func parseCallback(data string) (Callback, error) {
	parts := strings.Split(data, "|")
	if len(parts) < 2 {
		return Callback{}, errMalformedCallback
	}
	switch CallbackKind(parts[0]) {
	case CallbackAdmin:
		if len(parts) != 3 {
			return Callback{}, errMalformedCallback
		}
		userID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return Callback{}, errMalformedCallback
		}
		verdict := AdminVerdict(parts[1])
		switch verdict {
		case VerdictPass, VerdictKick, VerdictUnban:
		default:
			return Callback{}, errors.WithMessagef(errUnknownAction, "verdict %q", parts[1])
		}
		return Callback{Kind: CallbackAdmin, Verdict: verdict, UserID: userID}, nil
	case CallbackChallenge:
		if len(parts) != 4 {
			return Callback{}, errMalformedCallback
		}
		ids := make([]int64, 3)
		for i, part := range parts[1:] {
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return Callback{}, errMalformedCallback
			}
			ids[i] = id
		}
		return Callback{
			Kind:       CallbackChallenge,
			UserID:     ids[0],
			QuestionID: ids[1],
			AnswerID:   ids[2],
		}, nil
	default:
		return Callback{}, errors.WithMessagef(errUnknownAction, "kind %q", parts[0])
	}
}

func adminCallbackData(verdict AdminVerdict, userID int64) string {
	return string(CallbackAdmin) + "|" + string(verdict) + "|" + strconv.FormatInt(userID, 10)
}

func challengeCallbackData(userID, questionID, answerID int64) string {
	return string(CallbackChallenge) + "|" +
		strconv.FormatInt(userID, 10) + "|" +
		strconv.FormatInt(questionID, 10) + "|" +
		strconv.FormatInt(answerID, 10)
}
