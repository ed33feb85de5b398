package domain

// Block is the context of the block currently being processed.
type Block struct {
	Height    int64 // block height
	Timestamp int64 // block time, Unix milliseconds
}

// Unix returns the block time in Unix seconds, the unit used for bucketing.
func (b Block) Unix() int64 {
	return b.Timestamp / 1000
}
