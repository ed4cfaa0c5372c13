package visualize

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/bradleyjkemp/memviz"

	"coinsim/model"
)

// We re-define a render model here because the chain types carry long
// hashes, keys and signatures that only clutter the picture.
type input struct {
	prevTxHash string
	index      int64
}

type output struct {
	value   int64
	address string
}

type coinbaseTransaction struct {
	hash    string
	outputs []output
	height  int64
}

type transaction struct {
	hash    string
	inputs  []input
	outputs []output
}

type block struct {
	index    int64
	hash     string
	prevHash string
	coinbase coinbaseTransaction
	txs      []transaction
	nonce    int64
	next     *block
}

// The string of an address or hash is just too long to render, instead we
// take only first 3 and last 3 characters and replace the middle part with
// '...'. E.g. "abcdefghi" will be rendered as "abc...ghi"
func shortenString(s string) string {
	if len(s) < 9 {
		return s
	}
	return fmt.Sprintf("%s...%s", s[0:3], s[len(s)-3:])
}

func txToTx(tx *model.Transaction) transaction {
	t := transaction{
		hash: shortenString(tx.Hash),
	}
	for _, in := range tx.Inputs {
		t.inputs = append(t.inputs, input{prevTxHash: shortenString(in.PrevTxHash), index: in.Index})
	}
	for _, out := range tx.Outputs {
		t.outputs = append(t.outputs, output{address: shortenString(out.Address), value: out.Value})
	}
	return t
}

func txToCb(tx *model.Transaction) coinbaseTransaction {
	cb := coinbaseTransaction{
		hash:   shortenString(tx.Hash),
		height: tx.Height,
	}
	for _, out := range tx.Outputs {
		cb.outputs = append(cb.outputs, output{address: shortenString(out.Address), value: out.Value})
	}
	return cb
}

func blockToBlock(b *model.Block) *block {
	n := &block{
		index:    b.Index,
		hash:     shortenString(b.Hash),
		prevHash: shortenString(b.PrevHash),
		nonce:    b.Nonce,
	}
	if b.Coinbase != nil {
		n.coinbase = txToCb(b.Coinbase)
	}
	for _, tx := range b.Txs {
		n.txs = append(n.txs, txToTx(tx))
	}
	return n
}

// constructData links the given blocks oldest-first into a render chain.
func constructData(blocks []*model.Block) *block {
	var head, prev *block
	for _, b := range blocks {
		n := blockToBlock(b)
		if prev == nil {
			head = n
		} else {
			prev.next = n
		}
		prev = n
	}
	return head
}

// Render draws the given stretch of the chain to a png under /tmp, where:
// blocks: the last blocks of the chain, tail last.
// id: unique id of the node.
func Render(blocks []*model.Block, id string) error {
	buf := &bytes.Buffer{}

	chain := constructData(blocks)
	memviz.Map(buf, &chain)

	fileName := "/tmp/chaindata-" + id
	outputName := "/tmp/rendered-chain-" + id + ".png"
	if err := os.WriteFile(fileName, buf.Bytes(), 0644); err != nil {
		return err
	}

	if err := exec.Command("dot", "-Tpng", fileName, "-o", outputName).Run(); err != nil {
		return err
	}
	// Best effort preview; ignore failures on headless machines.
	exec.Command("open", outputName).Run()
	return nil
}
