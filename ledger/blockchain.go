package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type Blockchain struct {
	mu     sync.RWMutex
	blocks []Block
	now    func() time.Time
}

// NewBlockchain creates a chain holding only the genesis block, whose
// previous hash is "0".
func NewBlockchain() *Blockchain {
	bc := &Blockchain{now: time.Now}
	genesis := Block{
		Index:     0,
		Timestamp: bc.now().Unix(),
		PrevHash:  "0",
		Entry:     Entry{Kind: KindGenesis},
	}
	genesis.Hash = calculateHash(genesis)
	bc.blocks = append(bc.blocks, genesis)
	return bc
}

// append links e to the latest block and adds it to the chain.
func (bc *Blockchain) append(e Entry) (Block, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	latest := bc.blocks[len(bc.blocks)-1]
	b := Block{
		Index:     latest.Index + 1,
		Timestamp: bc.now().Unix(),
		PrevHash:  latest.Hash,
		Entry:     e,
	}
	b.Hash = calculateHash(b)
	if err := validateBlock(b, latest); err != nil {
		return Block{}, fmt.Errorf("invalid block: %w", err)
	}
	bc.blocks = append(bc.blocks, b)
	return b, nil
}

// Latest returns the most recently added block.
func (bc *Blockchain) Latest() Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.blocks[len(bc.blocks)-1]
}

// ByIndex retrieves a block by its index in the chain.
func (bc *Blockchain) ByIndex(index int) (Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if index < 0 || index >= len(bc.blocks) {
		return Block{}, fmt.Errorf("index %d out of range", index)
	}
	return bc.blocks[index], nil
}

// Blocks returns a copy of the chain.
func (bc *Blockchain) Blocks() []Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return append([]Block(nil), bc.blocks...)
}

// Verify checks the genesis block and the linkage and hash of every block.
func (bc *Blockchain) Verify() error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return verifyBlocks(bc.blocks)
}

func verifyBlocks(blocks []Block) error {
	if len(blocks) == 0 {
		return fmt.Errorf("empty blockchain")
	}
	if blocks[0].PrevHash != "0" || blocks[0].Entry.Kind != KindGenesis {
		return fmt.Errorf("invalid genesis block")
	}
	if blocks[0].Hash != calculateHash(blocks[0]) {
		return fmt.Errorf("invalid genesis hash")
	}
	for i := 1; i < len(blocks); i++ {
		if err := validateBlock(blocks[i], blocks[i-1]); err != nil {
			return fmt.Errorf("block %d invalid: %w", i, err)
		}
	}
	return nil
}

func validateBlock(current, previous Block) error {
	if current.Index != previous.Index+1 {
		return fmt.Errorf("invalid index: expected %d, got %d", previous.Index+1, current.Index)
	}
	if current.PrevHash != previous.Hash {
		return fmt.Errorf("invalid prev hash: expected %s, got %s", previous.Hash, current.PrevHash)
	}
	if expected := calculateHash(current); current.Hash != expected {
		return fmt.Errorf("invalid hash: expected %s, got %s", expected, current.Hash)
	}
	return nil
}

// calculateHash is the SHA256 of the index, timestamp, previous hash and
// JSON entry of block.
func calculateHash(block Block) string {
	entry, _ := json.Marshal(block.Entry)
	data := fmt.Sprintf("%d%d%s%s", block.Index, block.Timestamp, block.PrevHash, entry)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
