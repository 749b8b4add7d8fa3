package convert

import (
	"fmt"

	"github.com/brensch/symcheck/game"
)

const (
	// HistoryPlanes is the number of board snapshots encoded, newest first.
	HistoryPlanes = game.HistoryLength
	// Channels is 2 planes per history board plus the side-to-move plane.
	Channels = 2*HistoryPlanes + 1
)

// Tensor is a dense float32 array in [Channels, Height, Width] (C, H, W) order.
type Tensor struct {
	Channels int
	Height   int
	Width    int
	Data     []float32
}

func NewTensor(c, h, w int) Tensor {
	return Tensor{Channels: c, Height: h, Width: w, Data: make([]float32, c*h*w)}
}

// At returns the value at (c, y, x).
func (t Tensor) At(c, y, x int) float32 {
	return t.Data[(c*t.Height+y)*t.Width+x]
}

func (t Tensor) Set(c, y, x int, v float32) {
	t.Data[(c*t.Height+y)*t.Width+x] = v
}

// Len is the number of elements.
func (t Tensor) Len() int { return t.Channels * t.Height * t.Width }

func (t Tensor) Shape() string {
	return fmt.Sprintf("[%d %d %d]", t.Channels, t.Height, t.Width)
}

// Features encodes the position from the perspective of the side to move.
// Output shape: [Channels, Size, Size]
// Channel layout (17 total):
// 2i:   side-to-move stones, i boards ago (i = 0..7)
// 2i+1: opponent stones, i boards ago
// 16:   all ones when Black is to move, zeros otherwise
// Boards older than the recorded history are left as zeros.
func Features(pos *game.Position) Tensor {
	n := int(pos.Size)
	t := NewTensor(Channels, n, n)
	plane := n * n

	me := pos.ToPlay
	opp := me.Opponent()

	for i := 0; i < HistoryPlanes; i++ {
		board := pos.Recent(i)
		if board == nil {
			break
		}
		mine := t.Data[(2*i)*plane : (2*i+1)*plane]
		theirs := t.Data[(2*i+1)*plane : (2*i+2)*plane]
		for idx, c := range board {
			switch c {
			case me:
				mine[idx] = 1
			case opp:
				theirs[idx] = 1
			}
		}
	}

	if me == game.Black {
		toPlay := t.Data[(Channels-1)*plane:]
		for i := range toPlay {
			toPlay[i] = 1
		}
	}
	return t
}
