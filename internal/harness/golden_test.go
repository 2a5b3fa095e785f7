package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGolden(t *testing.T) {
	for _, name := range []string{"incremental_edit", "pending_retry", "cycle_rejected"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			r, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, r.Pass, "%v", r.Errors)
		})
	}
}

func TestSnapshot_IsDeterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/shared_content.yaml")
	require.NoError(t, err)

	snapshot := func() string {
		r, err := Run(context.Background(), s)
		require.NoError(t, err)
		data, err := Snapshot(r)
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, snapshot(), snapshot())
}

func TestSnapshot_Format(t *testing.T) {
	r := NewResult("fmt")
	r.AddError("revisions[0] (doc): boom")
	r.Revisions = append(r.Revisions, RevisionResult{
		Document: "doc",
		Error:    ErrorDuplicateIdentity,
	})

	data, err := Snapshot(r)
	require.NoError(t, err)
	assert.Equal(t,
		`{"errors":["revisions[0] (doc): boom"],"name":"fmt","pass":false}`+"\n"+
			`{"diff":{"added":0,"changed":0,"removed":0,"unchanged":0},"document":"doc","error":"duplicate_identity","generator_calls":0,"levels":[],"outcomes":{"cached":[],"compiled":[],"errored":[],"invalid":[]},"revision":0}`+"\n",
		string(data))
}
