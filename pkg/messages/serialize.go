package messages

import (
	"bytes"
	"fmt"
	"io"

	snapshotfb "github.com/cbodonnell/noughts/flatbuffers/snapshot"
	"github.com/cbodonnell/noughts/pkg/game/types"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
)

// SerializeGameSnapshot encodes a snapshot as a zstd-compressed FlatBuffer.
func SerializeGameSnapshot(s *GameSnapshot) ([]byte, error) {
	b := SerializeGameSnapshotFlatbuffer(s)

	compressed := bytes.NewBuffer(nil)
	compWriter, err := zstd.NewWriter(compressed, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %v", err)
	}
	if _, err := compWriter.Write(b); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %v", err)
	}
	if err := compWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd writer: %v", err)
	}

	return compressed.Bytes(), nil
}

// DeserializeGameSnapshot decodes a frame written by SerializeGameSnapshot.
func DeserializeGameSnapshot(data []byte) (*GameSnapshot, error) {
	compReader, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %v", err)
	}
	defer compReader.Close()
	b, err := io.ReadAll(compReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed snapshot: %v", err)
	}

	snapshot, err := DeserializeGameSnapshotFlatbuffer(b)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot: %v", err)
	}
	return snapshot, nil
}

func SerializeGameSnapshotFlatbuffer(s *GameSnapshot) []byte {
	builder := flatbuffers.NewBuilder(0)

	roomID := builder.CreateString(s.RoomID)
	roomStatus := builder.CreateString(string(s.RoomStatus))
	moves := builder.CreateString(s.MovesString)
	nextTurn := builder.CreateString(string(s.NextTurnSymbol))
	winner := builder.CreateString(string(s.WinnerSymbol))

	snapshotfb.GameSnapshotStart(builder)
	snapshotfb.GameSnapshotAddRoomId(builder, roomID)
	snapshotfb.GameSnapshotAddRoomStatus(builder, roomStatus)
	snapshotfb.GameSnapshotAddMoves(builder, moves)
	snapshotfb.GameSnapshotAddNextTurn(builder, nextTurn)
	snapshotfb.GameSnapshotAddWinner(builder, winner)
	snapshotfb.GameSnapshotAddUpdatedAt(builder, s.UpdatedAt)
	snapshotOffset := snapshotfb.GameSnapshotEnd(builder)
	snapshotfb.FinishGameSnapshotBuffer(builder, snapshotOffset)

	return builder.FinishedBytes()
}

func DeserializeGameSnapshotFlatbuffer(b []byte) (s *GameSnapshot, err error) {
	// the accessors panic on truncated input
	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = fmt.Errorf("malformed snapshot: %v", r)
		}
	}()
	if len(b) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("malformed snapshot: %d bytes", len(b))
	}

	fb := snapshotfb.GetRootAsGameSnapshot(b, 0)
	status, err := types.ParseRoomStatus(string(fb.RoomStatus()))
	if err != nil {
		return nil, err
	}
	return &GameSnapshot{
		RoomID:         string(fb.RoomId()),
		RoomStatus:     status,
		MovesString:    string(fb.Moves()),
		NextTurnSymbol: types.Symbol(fb.NextTurn()),
		WinnerSymbol:   types.Symbol(fb.Winner()),
		UpdatedAt:      fb.UpdatedAt(),
	}, nil
}
