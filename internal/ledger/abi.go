package ledger

// bookieABI is the subset of the wager contract's ABI the gateway touches:
// the two mutating calls, the balance views, the constants read at startup,
// and the event carrying the ledger-assigned bet id.
const bookieABI = `[
  {"type":"function","name":"makeBet","stateMutability":"nonpayable",
   "inputs":[
     {"name":"_over","type":"address"},
     {"name":"_under","type":"address"},
     {"name":"_sym","type":"string"},
     {"name":"_amt","type":"uint256"},
     {"name":"_price","type":"uint256"},
     {"name":"_exp","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"settleBet","stateMutability":"nonpayable",
   "inputs":[
     {"name":"bet_id","type":"uint256"},
     {"name":"over_wins","type":"bool"}],
   "outputs":[]},
  {"type":"function","name":"getSpendableBalance","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getLockedBalance","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"BLOCK_SAFETY_MARGIN","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"max_bet_size","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"max_account_balance","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"RELEASE_VERSION","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"BetCreated","anonymous":false,
   "inputs":[{"name":"bet_id","type":"uint256","indexed":false}]}
]`
