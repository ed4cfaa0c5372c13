package main

import (
	"bufio"
	"context"
	_ "embed"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/jroimartin/gocui"
	log "github.com/sirupsen/logrus"

	"coinsim/commands"
	"coinsim/config"
	"coinsim/layout"
	"coinsim/node"
	"coinsim/store"
	"coinsim/visualize"
	"coinsim/wallet"
)

var (
	configPath *string
	debugMode  *bool
)

//go:embed usage.txt
var usageText string

func init() {
	configPath = flag.String("config_path", "", "optional yaml config file")
	debugMode = flag.Bool("debug_mode", false, "Using debug mode will disable fancy GUI.")
}

// app bundles the pieces the command loop drives.
type app struct {
	node    *node.Node
	store   *store.Store
	cfg     config.AppConfig
	wallets map[string]*wallet.Wallet
	keyDir  string
	gui     *gocui.Gui

	// Guards the mining goroutine: at most one runs at a time.
	mu         sync.Mutex
	cancelMine context.CancelFunc
}

func (a *app) print(msg string) {
	layout.Print(a.gui, msg)
}

// loadWallets reads every key file previously saved under keyDir.
func loadWallets(keyDir string) (map[string]*wallet.Wallet, error) {
	wallets := make(map[string]*wallet.Wallet)
	paths, err := filepath.Glob(filepath.Join(keyDir, "*.key"))
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		w, err := wallet.Load(path)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(path), ".key")
		wallets[name] = w
	}
	return wallets, nil
}

// resolveAddress maps a wallet name to its address, or passes a raw address
// through.
func (a *app) resolveAddress(nameOrAddress string) string {
	if w, ok := a.wallets[nameOrAddress]; ok {
		return w.Address()
	}
	return nameOrAddress
}

func (a *app) createWallet(name string) {
	if _, exists := a.wallets[name]; exists {
		a.print("wallet " + name + " already exists")
		return
	}
	w, err := wallet.New()
	if err != nil {
		a.print("failed to create wallet: " + err.Error())
		return
	}
	if err := w.Save(filepath.Join(a.keyDir, name+".key")); err != nil {
		a.print("failed to save wallet key: " + err.Error())
		return
	}
	a.wallets[name] = w
	a.print(fmt.Sprintf("wallet %s created, address: %s", name, w.Address()))
}

func (a *app) transfer(from, to string, amount int64) {
	sender, ok := a.wallets[from]
	if !ok {
		a.print("unknown sender wallet " + from)
		return
	}
	tx, err := sender.BuildTransaction(a.resolveAddress(to), amount, a.node.LedgerSnapshot())
	if err != nil {
		a.print("failed to build transaction: " + err.Error())
		return
	}
	if err := a.node.AddTransaction(tx); err != nil {
		a.print("transaction rejected: " + err.Error())
		return
	}
	a.print(fmt.Sprintf("transaction %s pending: %d from %s to %s", tx.Hash, amount, from, to))
}

func (a *app) startMining(miner string) {
	w, ok := a.wallets[miner]
	if !ok {
		a.print("unknown miner wallet " + miner)
		return
	}
	a.mu.Lock()
	if a.cancelMine != nil {
		a.mu.Unlock()
		a.print("mining has already been started")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancelMine = cancel
	n := a.node
	a.mu.Unlock()

	go func() {
		defer func() {
			a.mu.Lock()
			a.cancelMine = nil
			a.mu.Unlock()
		}()
		block, err := n.Mine(ctx, w.Address())
		if err != nil {
			a.print("mining stopped: " + err.Error())
			return
		}
		a.print(fmt.Sprintf("block #%d mined by %s, hash %s, nonce %d, txs %d",
			block.Index, miner, block.Hash, block.Nonce, len(block.Txs)))
	}()
}

func (a *app) stopMining() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelMine == nil {
		a.print("no running mining task to stop")
		return
	}
	a.cancelMine()
}

func (a *app) show(depth int) {
	blocks := a.node.Blocks(depth)
	for _, b := range blocks {
		a.print(fmt.Sprintf("block #%d hash=%s prev=%s nonce=%d txs=%d",
			b.Index, b.Hash, b.PrevHash, b.Nonce, len(b.Txs)))
	}
	if err := visualize.Render(blocks, a.node.ID()); err != nil {
		log.WithError(err).Debug("chain render unavailable")
	}
	if err := a.node.ValidateChain(); err != nil {
		a.print("WARNING, chain failed validation: " + err.Error())
	} else {
		a.print("chain is valid")
	}
}

func (a *app) showPool() {
	pending := a.node.PendingTransactions()
	if len(pending) == 0 {
		a.print("no pending transactions")
		return
	}
	for _, tx := range pending {
		var total int64
		for _, out := range tx.Outputs {
			total += out.Value
		}
		a.print(fmt.Sprintf("tx %s inputs=%d outputs=%d total=%d", tx.Hash, len(tx.Inputs), len(tx.Outputs), total))
	}
}

func (a *app) save() {
	blocks, pending := a.node.Export()
	if err := a.store.Save(blocks, pending); err != nil {
		a.print("failed to save chain: " + err.Error())
		return
	}
	a.print(fmt.Sprintf("saved %d blocks and %d pending transactions", len(blocks), len(pending)))
}

// load replaces the running node with the persisted chain state. Refused
// while a mining task holds a snapshot of the node being replaced.
func (a *app) load() {
	a.mu.Lock()
	mining := a.cancelMine != nil
	a.mu.Unlock()
	if mining {
		a.print("stop mining before loading a saved chain")
		return
	}
	empty, err := a.store.Empty()
	if err != nil {
		a.print("failed to read chain store: " + err.Error())
		return
	}
	if empty {
		a.print("no saved chain to load")
		return
	}
	blocks, pending, err := a.store.Load()
	if err != nil {
		a.print("failed to load chain: " + err.Error())
		return
	}
	n, err := node.NewFromChain(a.cfg, blocks, pending)
	if err != nil {
		a.print("saved chain rejected: " + err.Error())
		return
	}
	a.mu.Lock()
	a.node = n
	a.mu.Unlock()
	a.print(fmt.Sprintf("loaded %d blocks and %d pending transactions", len(blocks), len(pending)))
}

// HandleCommand dispatches parsed commands to the node.
func (a *app) HandleCommand(cmd chan commands.Command) {
	for {
		c := <-cmd
		switch c.Op {
		case commands.CREATE_WALLET:
			a.createWallet(c.Args[0])
		case commands.TRANSFER:
			amount, _ := strconv.ParseInt(c.Args[2], 10, 64)
			a.transfer(c.Args[0], c.Args[1], amount)
		case commands.MINE:
			a.startMining(c.Args[0])
		case commands.STOP:
			a.stopMining()
		case commands.SHOW:
			depth, _ := strconv.Atoi(c.Args[0])
			a.show(depth)
		case commands.POOL:
			a.showPool()
		case commands.BALANCE:
			addr := a.resolveAddress(c.Args[0])
			a.print(fmt.Sprintf("balance of %s: %d", c.Args[0], a.node.GetBalance(addr)))
		case commands.SAVE:
			a.save()
		case commands.LOAD:
			a.load()
		default:
			a.print(fmt.Sprintf("unrecognized command: %v", c))
		}
	}
}

// ParseCommand reads commands from stdin in debug mode.
func ParseCommand(cmd chan commands.Command) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		text, _ := reader.ReadString('\n')
		text = strings.Replace(text, "\n", "", -1)
		c, err := commands.CreateCommand(text)
		if err != nil {
			log.Println(err)
			continue
		}
		cmd <- c
	}
}

// ListenOnInput returns a gui handle if not in debug mode.
func ListenOnInput(cmd chan commands.Command, debug bool) *gocui.Gui {
	if debug {
		go ParseCommand(cmd)
		return nil
	}
	g, err := layout.CreateGui(cmd, usageText)
	if err != nil {
		log.Fatalln(err)
	}
	go func() {
		if err := g.MainLoop(); err != nil {
			if err == gocui.ErrQuit {
				g.Close()
				os.Exit(0)
			}
			os.Exit(1)
		}
	}()
	return g
}

func newNode(cfg config.AppConfig, st *store.Store) (*node.Node, error) {
	empty, err := st.Empty()
	if err != nil {
		return nil, err
	}
	if empty {
		return node.New(cfg)
	}
	blocks, pending, err := st.Load()
	if err != nil {
		// A corrupt save must fail loudly, never silently restart empty.
		return nil, err
	}
	log.WithFields(log.Fields{"blocks": len(blocks), "pending": len(pending)}).Info("chain state restored")
	return node.NewFromChain(cfg, blocks, pending)
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.SetLevel(cfg.LogLevel)

	keyDir := filepath.Join(cfg.DataDir, "wallets")
	if err := os.MkdirAll(keyDir, 0700); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	st, err := store.Open(filepath.Join(cfg.DataDir, "chain.db"))
	if err != nil {
		log.Fatalf("failed to open chain store: %v", err)
	}
	n, err := newNode(cfg, st)
	if err != nil {
		log.Fatalf("failed to initialize node: %v", err)
	}
	wallets, err := loadWallets(keyDir)
	if err != nil {
		log.Fatalf("failed to load wallets: %v", err)
	}

	cmd := make(chan commands.Command)
	g := ListenOnInput(cmd, *debugMode)

	a := &app{
		node:    n,
		store:   st,
		cfg:     cfg,
		wallets: wallets,
		keyDir:  keyDir,
		gui:     g,
	}
	a.print(fmt.Sprintf("node %s ready at height %d (difficulty %d, reward %d)",
		n.ID(), len(n.Blocks(0))-1, cfg.Difficulty, cfg.CoinbaseReward))

	a.HandleCommand(cmd)
}
