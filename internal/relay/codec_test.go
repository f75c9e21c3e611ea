package relay

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/multibar"
)

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	runID := uuid.New()
	in := multibar.Update{Worker: 3, Op: multibar.OpSet, Value: 42}

	data, err := EncodeUpdate(runID, in)
	require.NoError(t, err)

	gotRun, got, err := DecodeUpdate(data)
	require.NoError(t, err)
	require.Equal(t, runID, gotRun)
	require.Equal(t, in, got)
}

func TestEncodeRejectsInvalidUpdate(t *testing.T) {
	t.Parallel()

	_, err := EncodeUpdate(uuid.New(), multibar.Update{Worker: -1, Op: multibar.OpNext})
	require.Error(t, err)

	_, err = EncodeUpdate(uuid.New(), multibar.Update{Worker: 0})
	require.Error(t, err, "zero op must not reach the wire")
}

func TestDecodeRejectsBadPayloads(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		data string
	}{
		{"not json", `{{`},
		{"missing run id", `{"worker":0,"op":"next"}`},
		{"bad run id", `{"run_id":"nope","worker":0,"op":"next"}`},
		{"unknown op", `{"run_id":"` + uuid.NewString() + `","worker":0,"op":"pause"}`},
		{"negative worker", `{"run_id":"` + uuid.NewString() + `","worker":-2,"op":"next"}`},
		{"negative value", `{"run_id":"` + uuid.NewString() + `","worker":0,"op":"set","value":-5}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := DecodeUpdate([]byte(tc.data))
			require.Error(t, err)
		})
	}
}

func TestOrderingKeyPerWorker(t *testing.T) {
	t.Parallel()

	require.Equal(t, "worker-0", orderingKey(0))
	require.NotEqual(t, orderingKey(1), orderingKey(2))
}
