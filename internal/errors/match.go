// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package errors

// Template describes the fields of an Err that a Match call must find.  Zero
// fields are wildcards, so a template can pin down just a Code, just an Op, a
// Kind without naming a Code, or any combination.
type Template struct {
	Err       // the Code, Msg, Op and Wrapped fields to match on
	Kind Kind // matches the Kind of the error's Code when set
}

// T builds a Template from its arguments, keyed by type: a Code, a Kind, an
// Op, a string (matched against Msg) or an error (matched against Wrapped).
// Anything else is ignored, and a repeated type keeps only the last value.
func T(args ...any) *Template {
	t := &Template{}
	for _, a := range args {
		switch arg := a.(type) {
		case Code:
			t.Code = arg
		case Kind:
			t.Kind = arg
		case Op:
			t.Op = arg
		case string:
			t.Msg = arg
		case *Err: // must precede the error case
			c := *arg
			t.Wrapped = &c
		case error:
			t.Wrapped = arg
		}
	}
	return t
}

// Error satisfies the error interface so a Template can stand in for the
// wrapped error of another Template.  The string is deliberately useless:
// templates are for matching, never for raising.
func (t *Template) Error() string {
	return "Template error"
}

// Match reports whether err is (or wraps) an *Err whose non-zero template
// fields all agree.  A template wrapping another Template recurses into the
// error chain.
func Match(t *Template, err error) bool {
	if t == nil || err == nil {
		return false
	}
	var e *Err
	if !As(err, &e) {
		return false
	}
	switch {
	case t.Code != Unknown && t.Code != e.Code:
		return false
	case t.Msg != "" && t.Msg != e.Msg:
		return false
	case t.Op != "" && t.Op != e.Op:
		return false
	case t.Kind != Other && t.Kind != e.Code.Info().Kind:
		return false
	}
	if t.Wrapped != nil {
		if inner, ok := t.Wrapped.(*Template); ok {
			return Match(inner, e.Wrapped)
		}
		if e.Wrapped == nil || t.Wrapped.Error() != e.Wrapped.Error() {
			return false
		}
	}
	return true
}
