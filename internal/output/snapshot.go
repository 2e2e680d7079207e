package output

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/talgya/bilayer-epidemic/internal/agents"
	"github.com/talgya/bilayer-epidemic/internal/engine"
	"github.com/talgya/bilayer-epidemic/internal/network"
)

// snapshotVersion is bumped whenever the Snapshot layout changes.
const snapshotVersion = 1

// Snapshot is the final state of a run in a form other tools can load.
type Snapshot struct {
	Version     int               `msgpack:"version"`
	Nodes       int               `msgpack:"nodes"`
	Physical    [][2]int64        `msgpack:"physical"`
	Virtual     [][2]int64        `msgpack:"virtual"`
	Agents      agents.Population `msgpack:"agents"`
	Transitions map[string]int    `msgpack:"transitions"`
}

// WriteSnapshot encodes the final layers and agents of res.
func WriteSnapshot(w io.Writer, res *engine.Result) error {
	snap := Snapshot{
		Version:     snapshotVersion,
		Nodes:       len(res.Agents),
		Physical:    res.Physical.Edges(),
		Virtual:     res.Virtual.Edges(),
		Agents:      res.Agents,
		Transitions: res.Transitions,
	}
	return msgpack.NewEncoder(w).Encode(&snap)
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return nil, err
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("output: snapshot version %d, want %d", snap.Version, snapshotVersion)
	}
	return &snap, nil
}

// Layers rebuilds both network layers from the edge lists.
func (s *Snapshot) Layers() (physical, virtual *network.Layer) {
	physical = network.NewLayer(s.Nodes)
	for _, e := range s.Physical {
		physical.AddEdge(e[0], e[1])
	}
	virtual = network.NewLayer(s.Nodes)
	for _, e := range s.Virtual {
		virtual.AddEdge(e[0], e[1])
	}
	return physical, virtual
}
