package followup

import "fmt"

// MessageFor returns the status-specific follow-up copy for a missed
// practice call. Unknown statuses get the generic no-answer copy.
func MessageFor(callStatus, name string) string {
	greeting := "Hi"
	if name != "" {
		greeting = fmt.Sprintf("Hi %s", name)
	}

	switch callStatus {
	case "no_answer":
		return fmt.Sprintf("%s! We tried calling for your Hindi practice session but couldn't reach you. Reply CALL and we'll ring you back, or open the app to reschedule.", greeting)
	case "busy":
		return fmt.Sprintf("%s! Your line was busy when we called for today's Hindi practice. We'll be ready when you are, just open the app to pick a new time.", greeting)
	case "failed":
		return fmt.Sprintf("%s, we couldn't connect your Hindi practice call. If this keeps happening, double-check your number in the app and we'll try again.", greeting)
	case "voicemail":
		return fmt.Sprintf("%s! We reached your voicemail for today's Hindi practice call. Your streak is safe. Reschedule in the app whenever suits you.", greeting)
	}
	return fmt.Sprintf("%s! We missed you for your Hindi practice call. Open the app to reschedule.", greeting)
}
