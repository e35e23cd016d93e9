// Package staff defines the internal staff account model.
//
// Staff accounts are role-gated and carry the two-factor enrollment state that
// the twofactor service drives through its Begin, Confirm and Disable
// transitions.
package staff
