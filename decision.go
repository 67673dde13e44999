package aaa

// Decision is the outcome of an operation that historically offered a choice
// between raising and redirecting. Exactly one of three states holds:
// success (OK, no redirect), redirect requested (Redirect set), or a
// structured failure (Err set). The caller picks the policy; the engine only
// reports which branch was taken.
type Decision struct {
	OK       bool
	Redirect string
	Err      error
}

// Allowed reports plain success with no redirect requested.
func (d Decision) Allowed() bool {
	return d.OK && d.Redirect == ""
}

// Redirected reports that the caller should perform an external redirect
// instead of raising or continuing.
func (d Decision) Redirected() bool {
	return d.Redirect != ""
}

func allow() Decision {
	return Decision{OK: true}
}

func allowRedirect(target string) Decision {
	return Decision{OK: true, Redirect: target}
}

// refuse returns a redirect decision when a target was supplied, otherwise a
// structured failure. Data errors never take the redirect branch; callers of
// refuse only pass authorization failures.
func refuse(err error, redirect string) Decision {
	if redirect != "" {
		return Decision{Redirect: redirect}
	}
	return Decision{Err: err}
}

func fail(err error) Decision {
	return Decision{Err: err}
}
