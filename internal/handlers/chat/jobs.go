package handlers

import "strconv"

// Job names are composed deterministically from (chat, user) so a
// resolution cancels exactly the jobs it owns.
const (
	jobSuffixKick           = "auth_kick"
	jobSuffixCleanJoin      = "auth_clean_join_message"
	jobSuffixCleanChallenge = "auth_clean_question_message"
)

func jobName(chatID, userID int64, suffix string) string {
	return strconv.FormatInt(chatID, 10) + "|" + strconv.FormatInt(userID, 10) + "|" + suffix
}

func kickJobName(chatID, userID int64) string {
	return jobName(chatID, userID, jobSuffixKick)
}

func cleanJoinJobName(chatID, userID int64) string {
	return jobName(chatID, userID, jobSuffixCleanJoin)
}

func cleanChallengeJobName(chatID, userID int64) string {
	return jobName(chatID, userID, jobSuffixCleanChallenge)
}
