package domain

var allowedTransitions = map[Status][]Status{
	StatusNew:        {StatusAssigned, StatusInProgress, StatusPending, StatusResolved},
	StatusAssigned:   {StatusInProgress, StatusPending, StatusResolved},
	StatusInProgress: {StatusPending, StatusResolved},
	StatusPending:    {StatusInProgress, StatusResolved},
	StatusResolved:   {StatusClosed, StatusReopened},
	StatusClosed:     {StatusReopened},
	StatusReopened:   {StatusAssigned, StatusInProgress, StatusPending, StatusResolved},
}

// CanTransition reports whether moving from current to next is legal.
func CanTransition(current, next Status) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
