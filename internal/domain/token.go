package domain

// ResolverCMCIntID tags tokens whose on-ledger reference is a CoinMarketCap
// integer id. It is the only resolution method the settlement engine knows;
// settling a bet carrying any other tag is a hard failure.
const ResolverCMCIntID = "cmc_int_id_v0"

// Token is an immutable value object describing a resolved token. MarketCap
// is nil when neither a reported nor a derivable market cap was available.
type Token struct {
	ID        int64
	Symbol    string
	Name      string
	Rank      int
	MarketCap *int64
}

// Valid reports whether the token carries the fields every bet needs.
func (t Token) Valid() bool {
	return t.ID > 0 && t.Symbol != "" && t.Name != ""
}
