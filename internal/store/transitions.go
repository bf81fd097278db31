package store

import "patientportal/queue-service/internal/models"

// transitionMap lists the statuses a ticket may move to from each live
// status. DONE, CANCELLED, and MISSED are terminal. An operator advance may
// complete a ticket that was never observed as CALLING, so WAITING -> DONE
// is legal.
var transitionMap = map[string][]string{
	models.StatusWaiting: {models.StatusCalling, models.StatusDone, models.StatusCancelled, models.StatusMissed},
	models.StatusCalling: {models.StatusDone, models.StatusMissed},
}

// ValidTransition reports whether a ticket may move from one status to
// another. A no-op transition is always valid.
func ValidTransition(fromStatus, toStatus string) bool {
	if fromStatus == toStatus {
		return true
	}
	for _, status := range transitionMap[fromStatus] {
		if status == toStatus {
			return true
		}
	}
	return false
}
