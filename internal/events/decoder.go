package events

import (
	"encoding/base64"
	"encoding/hex"
	"log/slog"
	"strings"

	bin "github.com/gagliardetto/binary"
)

const (
	logDataPrefix  = "Program data: "
	logLinePrefix  = "Program "
	logNotePrefix1 = "log:"
	logNotePrefix2 = "data:"
	logNotePrefix3 = "return:"
)

// CreatedOrderEvent is a paired CreatedOrder + CreatedOrderID emission.
type CreatedOrderEvent struct {
	OrderID string // lowercase hex, 64 chars
	Order   Order
}

// FulfilledEvent is a decoded Fulfilled emission.
type FulfilledEvent struct {
	OrderID string // lowercase hex, 64 chars
	Taker   [32]byte
}

// TransactionEvents is everything one program emitted in one transaction.
type TransactionEvents struct {
	Created   []CreatedOrderEvent
	Fulfilled []FulfilledEvent
}

// Empty reports whether the transaction produced no events of interest.
func (t TransactionEvents) Empty() bool {
	return len(t.Created) == 0 && len(t.Fulfilled) == 0
}

// Decode walks one transaction's ordered log messages and extracts the DLN
// events emitted directly by the given program.
//
// Log messages form nested frames delimited by "Program <addr> invoke [n]"
// and "Program <addr> success|failed". A "Program data:" line is attributed
// to its immediately enclosing frame, so emissions from CPI-called inner
// programs are ignored unless the inner program is the target itself.
//
// Decoding failures are confined to the single event: the payload is skipped
// and the rest of the transaction still decodes.
func Decode(logs []string, program string) TransactionEvents {
	var (
		frames    []string
		createds  []CreatedOrder
		ids       []CreatedOrderID
		fulfilled []FulfilledEvent
	)

	for _, line := range logs {
		if strings.HasPrefix(line, logDataPrefix) {
			if len(frames) == 0 || frames[len(frames)-1] != program {
				continue
			}

			payload, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(line, logDataPrefix))
			if err != nil || len(payload) < DiscriminatorLen {
				continue
			}
			var disc [DiscriminatorLen]byte
			copy(disc[:], payload[:DiscriminatorLen])
			body := payload[DiscriminatorLen:]

			switch disc {
			case discCreatedOrder:
				var ev CreatedOrder
				if err := ev.UnmarshalWithDecoder(bin.NewBorshDecoder(body)); err != nil {
					slog.Warn("skipping malformed CreatedOrder event",
						"program", program,
						"error", err,
					)
					continue
				}
				createds = append(createds, ev)
			case discCreatedOrderID:
				var ev CreatedOrderID
				if err := ev.UnmarshalWithDecoder(bin.NewBorshDecoder(body)); err != nil {
					slog.Warn("skipping malformed CreatedOrderId event",
						"program", program,
						"error", err,
					)
					continue
				}
				ids = append(ids, ev)
			case discFulfilled:
				var ev Fulfilled
				if err := ev.UnmarshalWithDecoder(bin.NewBorshDecoder(body)); err != nil {
					slog.Warn("skipping malformed Fulfilled event",
						"program", program,
						"error", err,
					)
					continue
				}
				fulfilled = append(fulfilled, FulfilledEvent{
					OrderID: hex.EncodeToString(ev.OrderID[:]),
					Taker:   ev.Taker,
				})
			}
			// Unknown discriminators belong to protocol events the indexer
			// does not consume.
			continue
		}

		addr, op := parseFrameLine(line)
		switch op {
		case frameInvoke:
			frames = append(frames, addr)
		case frameExit:
			if len(frames) > 0 {
				frames = frames[:len(frames)-1]
			}
		}
	}

	out := TransactionEvents{Fulfilled: fulfilled}

	// A created order is only well-formed when both CreatedOrder and
	// CreatedOrderId appear in the same transaction. Pair them in emission
	// order; leftovers on either side are dropped.
	pairs := min(len(createds), len(ids))
	if len(createds) != len(ids) {
		slog.Warn("unpaired order creation events in transaction",
			"program", program,
			"createdOrders", len(createds),
			"orderIds", len(ids),
		)
	}
	for i := 0; i < pairs; i++ {
		out.Created = append(out.Created, CreatedOrderEvent{
			OrderID: hex.EncodeToString(ids[i].OrderID[:]),
			Order:   createds[i].Order,
		})
	}
	return out
}

type frameOp int

const (
	frameNone frameOp = iota
	frameInvoke
	frameExit
)

// parseFrameLine classifies a log line as a frame push, a frame pop, or
// neither. "Program log:", "Program data:" and "Program return:" lines carry
// free-form content and are never frame delimiters.
func parseFrameLine(line string) (string, frameOp) {
	if !strings.HasPrefix(line, logLinePrefix) {
		return "", frameNone
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return "", frameNone
	}
	addr := fields[1]
	if addr == logNotePrefix1 || addr == logNotePrefix2 || addr == logNotePrefix3 {
		return "", frameNone
	}
	switch {
	case fields[2] == "invoke":
		return addr, frameInvoke
	case fields[2] == "success":
		return addr, frameExit
	case strings.HasPrefix(fields[2], "failed"):
		return addr, frameExit
	}
	return "", frameNone
}
