package snowflake

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sony/sonyflake"
)

// Generator holds the sonyflake instance.
type Generator struct {
	node *sonyflake.Sonyflake
}

// NewGenerator creates and returns a new Generator.
func NewGenerator(machineId uint16) (*Generator, error) {
	t, _ := time.Parse("2006-01-02", "2020-01-01")
	settings := sonyflake.Settings{
		StartTime: t,
		MachineID: func() (uint16, error) {
			return machineId, nil
		},
	}
	sf, err := sonyflake.New(settings)
	if err != nil {
		return nil, fmt.Errorf("sonyflake not created: %w", err)
	}
	return &Generator{node: sf}, nil
}

// GetID generates a new unique id.
func (g *Generator) GetID() (uint64, error) {
	return g.node.NextID()
}

// NextSerial returns a prefixed decimal serial, used as out_trade_no and out_refund_no.
// WeChat Pay limits these to 32 characters; prefix plus a uint64 stays well inside that.
func (g *Generator) NextSerial(prefix string) (string, error) {
	id, err := g.node.NextID()
	if err != nil {
		return "", fmt.Errorf("failed to generate serial: %w", err)
	}
	return prefix + strconv.FormatUint(id, 10), nil
}
