// permission.go - Role gate consumed by every state-machine transition.
//
// Role names double as service-kind authorizations: an operator whose role
// set contains "corte" may execute services of kind "corte". The privileged
// role bypasses the kind check entirely. Pure function, no side effects;
// callers reject with ErrForbidden when it returns false.

package execution

// CanOperate reports whether an actor with the given roles may act on a
// service of the given kind.
func CanOperate(roles []string, kind string) bool {
	for _, r := range roles {
		if r == AdminRole || r == kind {
			return true
		}
	}
	return false
}
