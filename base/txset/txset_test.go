package txset

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func hashOf(i int) common.Hash {
	return crypto.Keccak256Hash([]byte(fmt.Sprint(i)))
}

func TestAddContains(t *testing.T) {
	req := require.New(t)
	s := New(8)

	h := hashOf(1)
	req.False(s.Contains(h))
	s.Add(h)
	req.True(s.Contains(h))

	// duplicate adds do not grow the set
	s.Add(h)
	req.Equal(1, s.Len())
}

func TestEvictsOldestWhenFull(t *testing.T) {
	req := require.New(t)
	s := New(4)

	for i := 0; i < 6; i++ {
		s.Add(hashOf(i))
	}
	req.Equal(4, s.Len())
	req.False(s.Contains(hashOf(0)))
	req.False(s.Contains(hashOf(1)))
	req.True(s.Contains(hashOf(2)))
	req.True(s.Contains(hashOf(5)))
}

func TestConcurrentAddAndLookup(t *testing.T) {
	s := New(1024)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(2)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Add(hashOf(base*1000 + i))
			}
		}(w)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Contains(hashOf(base*1000 + i))
			}
		}(w)
	}
	wg.Wait()

	require.True(t, s.Len() <= 1024)
}
