package conversation

import "strings"

// Separator joins the two participant ids inside a conversation key. User ids
// are rejected at the API boundary if they contain it, so splitting on it is
// always unambiguous.
const Separator = ":"

// Key derives the conversation key for a pair of users. The two ids are
// sorted lexicographically before joining, so Key(a, b) == Key(b, a) and the
// key doubles as the realtime channel name both participants address.
func Key(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + Separator + userB
}

// Participants splits a conversation key back into its two user ids.
func Participants(key string) (string, string) {
	parts := strings.SplitN(key, Separator, 2)
	if len(parts) != 2 {
		return key, ""
	}
	return parts[0], parts[1]
}

// Counterpart returns the other participant of a conversation relative to
// userID, or "" when userID is not part of the conversation.
func Counterpart(key, userID string) string {
	a, b := Participants(key)
	switch userID {
	case a:
		return b
	case b:
		return a
	}
	return ""
}

// Contains reports whether userID is one of the two participants.
func Contains(key, userID string) bool {
	a, b := Participants(key)
	return userID == a || userID == b
}
