package command

// initGroup prepares b to aggregate children: the group runs when disabled
// only if every child does, and is CancelIncoming only if every child is.
func (b *Base) initGroup(name string) {
	b.name = name
	b.behavior = CancelIncoming
	b.disabled = disabledAllowed
}

// adopt validates children, marks them composed and folds their metadata into
// b. With disjoint set, children may not share a requirement with each other
// or with requirements b already holds. On error nothing is modified.
func (b *Base) adopt(disjoint bool, children ...Command) error {
	if err := checkComposable(children); err != nil {
		return err
	}
	if disjoint {
		claimed := make(map[Subsystem]struct{}, len(b.requirements))
		for _, r := range b.requirements {
			claimed[r] = struct{}{}
		}
		for _, c := range children {
			reqs := c.Requirements()
			for _, r := range reqs {
				if _, ok := claimed[r]; ok {
					return usageError(c, "multiple commands in a parallel composition cannot require the same subsystem %q", r.Name())
				}
			}
			for _, r := range reqs {
				claimed[r] = struct{}{}
			}
		}
	}

	for _, c := range children {
		c.base().composed = true
		b.AddRequirements(c.Requirements()...)
		if !c.RunsWhenDisabled() {
			b.disabled = disabledBlocked
		}
		if c.InterruptionBehavior() == CancelSelf {
			b.behavior = CancelSelf
		}
	}
	return nil
}

func checkComposable(children []Command) error {
	seen := make(map[Command]struct{}, len(children))
	for _, c := range children {
		if c == nil {
			return &UsageError{Reason: "nil command in composition"}
		}
		if c.base().composed {
			return usageError(c, "commands that have been composed may not be added to another composition")
		}
		if c.base().scheduled {
			return usageError(c, "scheduled commands may not be added to a composition")
		}
		if _, dup := seen[c]; dup {
			return usageError(c, "cannot compose a command twice in the same composition")
		}
		seen[c] = struct{}{}
	}
	return nil
}

// Compose marks cmds as owned by a user-defined composition and returns an
// error if any of them is nil, repeated, or already composed. On error no
// command is marked.
func Compose(cmds ...Command) error {
	if err := checkComposable(cmds); err != nil {
		return err
	}
	for _, c := range cmds {
		c.base().composed = true
	}
	return nil
}
