package replay

import "fmt"

// ValidateOrder checks that block heights strictly increase.
// Events inside a block keep log order and are not reordered.
func ValidateOrder(blocks []*Block) error {
	for i := 1; i < len(blocks); i++ {
		if err := checkOrder(blocks[i-1].Height, blocks[i].Height); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}
	return nil
}

func checkOrder(prev, next int64) error {
	if next <= prev {
		return fmt.Errorf("height %d after %d: %w", next, prev, ErrInvalidOrdering)
	}
	return nil
}
