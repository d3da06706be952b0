package bitcoin

import (
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
)

// RawTransaction is the verbose getrawtransaction result. Only the fields
// needed for fee accounting are decoded.
type RawTransaction struct {
	TxID string   `json:"txid"`
	Hash string   `json:"hash,omitempty"`
	Vin  []TxIn   `json:"vin"`
	Vout []Output `json:"vout"`
}

// TxIn is a transaction input. Coinbase inputs carry the coinbase script
// instead of a previous outpoint.
type TxIn struct {
	Coinbase string `json:"coinbase,omitempty"`
	TxID     string `json:"txid,omitempty"`
	Vout     uint32 `json:"vout,omitempty"`
}

// Output is a transaction output. AssetLabel is only present on
// Elements-based chains.
type Output struct {
	Value        float64                    `json:"value"`
	N            uint32                     `json:"n"`
	AssetLabel   string                     `json:"assetlabel,omitempty"`
	ScriptPubKey btcjson.ScriptPubKeyResult `json:"scriptPubKey"`
}

// IsCoinbase reports whether the transaction has the single coinbase input
func (tx *RawTransaction) IsCoinbase() bool {
	return len(tx.Vin) == 1 && tx.Vin[0].Coinbase != ""
}

// Amount converts the output value to an integer amount
func (o Output) Amount() (btcutil.Amount, error) {
	return btcutil.NewAmount(o.Value)
}

// MatchesAsset reports whether the output is denominated in label. Outputs
// without a label always match, as does an empty filter.
func (o Output) MatchesAsset(label string) bool {
	return label == "" || o.AssetLabel == "" || o.AssetLabel == label
}
