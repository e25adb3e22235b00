package identity

import (
	"testing"
)

type idOnlyPayload struct{ id int64 }

func (p idOnlyPayload) PlayerID() int64 { return p.id }

type fullPayload struct {
	id   int64
	name string
}

func (p fullPayload) PlayerID() int64    { return p.id }
func (p fullPayload) PlayerName() string { return p.name }

func TestExtractVariants(t *testing.T) {
	t.Parallel()
	x := NewExtractor()

	tests := []struct {
		name    string
		payload any
		want    int64
		ok      bool
	}{
		{name: "identified capability", payload: idOnlyPayload{id: 7}, want: 7, ok: true},
		{name: "identity bearer capability", payload: fullPayload{id: 9, name: "Nova"}, want: 9, ok: true},
		{name: "map entityId number", payload: map[string]any{"entityId": float64(42)}, want: 42, ok: true},
		{name: "map steamId string", payload: map[string]any{"steamId": "76561198000000001"}, want: 76561198000000001, ok: true},
		{name: "map id wins over entityId", payload: map[string]any{"entityId": float64(2), "id": float64(1)}, want: 1, ok: true},
		{name: "struct conventional field", payload: struct{ PlayerId int64 }{PlayerId: 5}, want: 5, ok: true},
		{name: "generic fallback", payload: map[string]any{"attackerHandle": float64(13)}, want: 13, ok: true},
		{name: "negative id rejected", payload: map[string]any{"entityId": float64(-3)}, ok: false},
		{name: "fractional rejected", payload: map[string]any{"entityId": 1.5}, ok: false},
		{name: "no identifier", payload: map[string]any{"reason": "timeout"}, ok: false},
		{name: "nil payload", payload: nil, ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := x.Extract(tt.payload)
			if ok != tt.ok {
				t.Fatalf("Extract ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("Extract = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExtractIdentity(t *testing.T) {
	t.Parallel()
	x := NewExtractor()

	tests := []struct {
		name     string
		payload  any
		wantID   int64
		wantName string
		ok       bool
	}{
		{name: "bearer", payload: fullPayload{id: 42, name: "Nova"}, wantID: 42, wantName: "Nova", ok: true},
		{name: "bearer without name", payload: fullPayload{id: 42}, ok: false},
		{name: "map pair", payload: map[string]any{"entityId": float64(42), "playerName": "Nova"}, wantID: 42, wantName: "Nova", ok: true},
		{name: "map id only", payload: map[string]any{"entityId": float64(42)}, ok: false},
		{name: "map sentinel name", payload: map[string]any{"entityId": float64(42), "playerName": "unknown"}, ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id, name, ok := x.ExtractIdentity(tt.payload)
			if ok != tt.ok {
				t.Fatalf("ExtractIdentity ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if id != tt.wantID || name != tt.wantName {
				t.Fatalf("ExtractIdentity = (%d, %q), want (%d, %q)", id, name, tt.wantID, tt.wantName)
			}
		})
	}
}
