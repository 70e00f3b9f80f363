package service

import (
	"context"
	"errors"
	"testing"

	"note-issuance-engine/internal/core/domain"
	"note-issuance-engine/internal/core/ports/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestNoteService_Attributes(t *testing.T) {
	e := newTestEngine(t, 0)
	e.seed(t)
	ctx := context.Background()

	note, err := e.issuance.IssueWithRarity(ctx, issueReq("alice", silver, "AA"), 2)
	require.NoError(t, err)

	attrs, err := e.notes.Attributes(ctx, note.TokenID)
	require.NoError(t, err)

	assert.Equal(t, "First Issue", attrs.SeriesName)
	assert.Equal(t, "Silver", attrs.DenominationName)
	assert.Equal(t, int64(250), attrs.FaceValue)
	assert.Equal(t, "Uncommon", attrs.RarityName)
	assert.Equal(t, int64(262), attrs.RedemptionValue) // 250 * 1.05, floored
	assert.Equal(t, int64(100001), attrs.Serial)
	assert.Equal(t, "ipfs://aa/silver.png", attrs.MediaPath)

	_, err = e.notes.Attributes(ctx, 404)
	assertAppError(t, err, "RDM_001")
}

func TestNoteService_Describe(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	renderer := mocks.NewMockMetadataRenderer(ctrl)
	e := newTestEngineWith(t, 0, engineOptions{renderer: renderer})
	e.seed(t)
	ctx := context.Background()

	note, err := e.issuance.IssueWithRarity(ctx, issueReq("alice", gold, "AA"), 4)
	require.NoError(t, err)

	renderer.EXPECT().
		Render(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, attrs domain.NoteAttributes) ([]byte, error) {
			assert.Equal(t, "Legendary", attrs.RarityName)
			assert.Equal(t, int64(1500), attrs.RedemptionValue)
			return []byte(`{"name":"Gold #200001"}`), nil
		})

	out, err := e.notes.Describe(ctx, note.TokenID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Gold #200001"}`, string(out))

	renderer.EXPECT().Render(gomock.Any(), gomock.Any()).Return(nil, errors.New("template missing"))
	_, err = e.notes.Describe(ctx, note.TokenID)
	assertAppError(t, err, "SYS_002")
}

func TestNoteService_DescribeWithoutRenderer(t *testing.T) {
	e := newTestEngine(t, 0)
	e.seed(t)

	note, err := e.issuance.Issue(context.Background(), issueReq("alice", bronze, "AA"))
	require.NoError(t, err)

	_, err = e.notes.Describe(context.Background(), note.TokenID)
	assertAppError(t, err, "SYS_002")
}

func TestMediaPath(t *testing.T) {
	assert.Equal(t, "ipfs://aa/gold.png", mediaPath("ipfs://aa/", "/gold.png"))
	assert.Equal(t, "gold.png", mediaPath("", "gold.png"))
	assert.Equal(t, "https://cdn/x", mediaPath("https://cdn/x", ""))
}
