package commands

import (
	"errors"
	"strconv"
	"strings"
)

type Operation int

const (
	DEFAULT = iota
	// Create a named wallet.
	CREATE_WALLET
	// Submit a transfer from one wallet to a wallet name or raw address.
	TRANSFER
	// Mine the pending transactions, rewarding the named wallet.
	MINE
	// Stop an in-flight mining run.
	STOP
	// Show the last n blocks of the chain.
	SHOW
	// Show the pending transaction pool.
	POOL
	// Query the balance of a wallet name or raw address.
	BALANCE
	// Persist the chain and mempool.
	SAVE
	// Restore the chain and mempool from the store.
	LOAD
)

// A command contains an operation and its arguments.
type Command struct {
	Op   Operation
	Args []string
}

func (c Command) IsValid() bool {
	switch c.Op {
	case STOP, POOL, SAVE, LOAD:
		return len(c.Args) == 0
	case CREATE_WALLET, MINE, BALANCE:
		return len(c.Args) == 1
	case SHOW:
		if len(c.Args) != 1 {
			return false
		}
		// depth must be a number.
		_, err := strconv.Atoi(c.Args[0])
		return err == nil
	case TRANSFER:
		if len(c.Args) != 3 {
			return false
		}
		amount, err := strconv.ParseInt(c.Args[2], 10, 64)
		return err == nil && amount > 0
	default:
		return false
	}
}

// CreateCommand parses one line of user input.
func CreateCommand(s string) (Command, error) {
	ss := strings.Fields(s)
	if len(ss) == 0 {
		return Command{}, errors.New("command is empty")
	}
	cmd := Command{}
	switch ss[0] {
	case "wallet":
		cmd.Op = CREATE_WALLET
	case "transfer":
		cmd.Op = TRANSFER
	case "mine":
		cmd.Op = MINE
	case "stop":
		cmd.Op = STOP
	case "show":
		cmd.Op = SHOW
	case "pool":
		cmd.Op = POOL
	case "balance":
		cmd.Op = BALANCE
	case "save":
		cmd.Op = SAVE
	case "load":
		cmd.Op = LOAD
	}
	cmd.Args = ss[1:]
	if !cmd.IsValid() {
		return Command{}, errors.New("invalid command")
	}
	return cmd, nil
}

// NewDefaultCommand creates a brand new command with default operation.
func NewDefaultCommand() Command {
	return Command{
		Op: DEFAULT,
	}
}

func (c Command) IsDefault() bool {
	return c.Op == DEFAULT
}
