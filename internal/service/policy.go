package service

// AccessPolicy decides which chat accounts may use the workflow and which
// may operate it. All exclusion checks go through this type.
type AccessPolicy struct {
	excluded  map[int64]struct{}
	operators map[int64]struct{}
}

// NewAccessPolicy builds a policy from configured id lists.
func NewAccessPolicy(excludedIDs, operatorIDs []int64) *AccessPolicy {
	p := &AccessPolicy{
		excluded:  make(map[int64]struct{}, len(excludedIDs)),
		operators: make(map[int64]struct{}, len(operatorIDs)),
	}
	for _, id := range excludedIDs {
		p.excluded[id] = struct{}{}
	}
	for _, id := range operatorIDs {
		p.operators[id] = struct{}{}
	}
	return p
}

// IsExcluded reports whether the account (typically a bot) must be ignored
// both as a creator and as a referrer.
func (p *AccessPolicy) IsExcluded(userID int64) bool {
	if p == nil {
		return false
	}
	_, ok := p.excluded[userID]
	return ok
}

// IsOperator reports whether the account may use operator commands.
func (p *AccessPolicy) IsOperator(userID int64) bool {
	if p == nil {
		return false
	}
	_, ok := p.operators[userID]
	return ok
}
