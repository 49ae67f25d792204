// cmd/iopoints/boards.go
package main

import (
	"fmt"

	"github.com/tamzrod/modbus-iopoints/internal/board"
	"github.com/tamzrod/modbus-iopoints/internal/config"
)

// startBoards builds and starts every board before any of them polls.
// On failure the boards already started are closed; nothing is left
// running, so no poller outlives its transport.
func startBoards(bcs []config.BoardConfig, build func(config.BoardConfig) (*board.Board, error)) ([]*board.Board, error) {
	boards := make([]*board.Board, 0, len(bcs))

	for _, bc := range bcs {
		b, err := build(bc)
		if err != nil {
			closeBoards(boards)
			return nil, fmt.Errorf("board build failed (board=%s): %w", bc.ID, err)
		}
		if err := b.Start(); err != nil {
			b.Close()
			closeBoards(boards)
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, nil
}

func closeBoards(boards []*board.Board) {
	for i := len(boards) - 1; i >= 0; i-- {
		boards[i].Close()
	}
}
