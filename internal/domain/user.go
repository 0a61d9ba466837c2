package domain

// User is a participant known to the directory. WalletAddr is empty until the
// user links a wallet; Verified flips once they prove ownership of it. The
// core treats users as a read-mostly lookup.
type User struct {
	ID         int64
	Name       string
	WalletAddr string
	Verified   bool
}

// CanWager reports whether the user has a linked, verified wallet.
func (u User) CanWager() bool {
	return u.WalletAddr != "" && u.Verified
}
