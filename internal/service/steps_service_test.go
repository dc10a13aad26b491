package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/observer-pro/observer-back/internal/models"
)

func TestSetSteps_CleansAndBroadcasts(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	roomID := f.createRoom(t, "host")

	req.NoError(f.svc.SetSteps(f.ctx, "host", StepsAllRequest{
		{Name: "1", Content: "first"},
		{Name: "2", Content: "   "},
		{Name: "17", Content: "out of range"},
		{Name: "theory", Content: "intro"},
		{Name: "bonus", Content: "unknown"},
		{Name: "16", Content: "last"},
	}))

	want := []models.Step{{Name: "1", Content: "first"}, {Name: "theory", Content: "intro"}, {Name: "16", Content: "last"}}
	sent := f.emit.room(roomID, EventStepsAll)
	req.Len(sent, 1)
	req.Equal(want, sent[0].Payload)
	room, _ := f.rooms.GetRoom(roomID)
	req.Equal(want, room.Steps)
}

func TestSetSteps_OnlyHost(t *testing.T) {
	f := newFixture(t)
	roomID := f.createRoom(t, "host")
	f.join(t, "ivan", roomID, "Ivan")
	require.ErrorIs(t, f.svc.SetSteps(f.ctx, "ivan", StepsAllRequest{}), ErrNotHost)
}

func TestStatusToClient_EmptyProgressIsReplaced(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	roomID := f.createRoom(t, "host")
	ivanID := f.join(t, "ivan", roomID, "Ivan")

	steps := map[string]string{"1": models.StepDone, "2": models.StepNone}
	req.NoError(f.svc.StatusToClient(f.ctx, "host", StepStatusToClientRequest{UserID: ivanID, Steps: steps}))

	ivan, _ := f.users.GetByConnection("ivan")
	req.Equal(steps, ivan.Progress)
	req.Equal(steps, f.emit.last(t, "ivan", EventStepsStatusToClient))
	req.Empty(f.emit.to("ivan", EventAlerts))
}

func TestStatusToClient_MergeAndAlerts(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	roomID := f.createRoom(t, "host")
	ivanID := f.join(t, "ivan", roomID, "Ivan")
	req.NoError(f.svc.StatusToMentor(f.ctx, "ivan", StepStatusToMentorRequest{
		"1": models.StepDone,
		"2": models.StepDone,
		"3": models.StepHelp,
		"4": models.StepAccepted,
	}))

	// When the host reviews
	req.NoError(f.svc.StatusToClient(f.ctx, "host", StepStatusToClientRequest{UserID: ivanID, Steps: map[string]string{
		"1": models.StepAccepted, // accepted
		"2": models.StepNone,     // declined
		"3": models.StepInProgress,
		"4": models.StepAccepted, // unchanged
		"9": models.StepDone,     // unknown key
	}}))

	// Then only existing keys change
	ivan, _ := f.users.GetByConnection("ivan")
	req.Equal(map[string]string{
		"1": models.StepAccepted,
		"2": models.StepNone,
		"3": models.StepInProgress,
		"4": models.StepAccepted,
	}, ivan.Progress)

	// and exactly two alerts are sent
	alerts := f.emit.to("ivan", EventAlerts)
	req.Equal([]any{
		AlertPayload{Message: "Task 1 solution accepted!", Type: AlertSuccess},
		AlertPayload{Message: "Task 2 solution declined!", Type: AlertWarning},
	}, alerts)
}

func TestStatusToMentor_ReplacesAndNotifiesHost(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	roomID := f.createRoom(t, "host")
	ivanID := f.join(t, "ivan", roomID, "Ivan")

	req.NoError(f.svc.StatusToMentor(f.ctx, "ivan", StepStatusToMentorRequest{"1": models.StepHelp}))

	got := f.emit.last(t, "host", EventStepsStatusToMentor).(UserStepsPayload)
	req.Equal(UserStepsPayload{UserID: ivanID, Steps: map[string]string{"1": models.StepHelp}}, got)
	ivan, _ := f.users.GetByConnection("ivan")
	req.Equal(map[string]string{"1": models.StepHelp}, ivan.Progress)
}

func TestStepsTable(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	roomID := f.createRoom(t, "host")
	ivanID := f.join(t, "ivan", roomID, "Ivan")
	f.join(t, "anna", roomID, "Anna")
	req.NoError(f.svc.StatusToMentor(f.ctx, "ivan", StepStatusToMentorRequest{"1": models.StepDone}))

	req.NoError(f.svc.StepsTable(f.ctx, "host"))

	req.Equal([]UserStepsPayload{{UserID: ivanID, Steps: map[string]string{"1": models.StepDone}}},
		f.emit.last(t, "host", EventStepsTable))
}

func TestImportSteps(t *testing.T) {
	req := require.New(t)
	imported := []models.Step{{Name: "1", Content: "<h3>A</h3>", Language: "html", Type: "exercise"}}
	importer := &fakeImporter{steps: imported}
	f := newFixture(t, func(o *Options) { o.Importer = importer })
	roomID := f.createRoom(t, "host")

	req.NoError(f.svc.ImportSteps(f.ctx, "host", StepsImportRequest{URL: "https://www.notion.so/x"}))

	req.Equal([]string{"https://www.notion.so/x"}, importer.urls)
	req.Equal(imported, f.emit.last(t, "host", EventStepsLoad))
	req.Equal(AlertSuccess, f.emit.last(t, "host", EventAlerts).(AlertPayload).Type)
	room, _ := f.rooms.GetRoom(roomID)
	req.Equal(imported, room.Steps)
}

func TestImportSteps_Failures(t *testing.T) {
	t.Run("upstream error", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t, func(o *Options) { o.Importer = &fakeImporter{err: errors.New("boom")} })
		f.createRoom(t, "host")

		err := f.svc.ImportSteps(f.ctx, "host", StepsImportRequest{URL: "https://www.notion.so/x"})

		var upstream *UpstreamError
		req.ErrorAs(err, &upstream)
		req.Equal(AlertError, f.emit.last(t, "host", EventAlerts).(AlertPayload).Type)
		req.Empty(f.emit.to("host", EventStepsLoad))
	})
	t.Run("no steps", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.createRoom(t, "host")

		err := f.svc.ImportSteps(f.ctx, "host", StepsImportRequest{URL: "https://www.notion.so/x"})

		req.ErrorIs(err, ErrNoSteps)
		req.Equal(AlertError, f.emit.last(t, "host", EventAlerts).(AlertPayload).Type)
	})
	t.Run("not host", func(t *testing.T) {
		importer := &fakeImporter{}
		f := newFixture(t, func(o *Options) { o.Importer = importer })
		roomID := f.createRoom(t, "host")
		f.join(t, "ivan", roomID, "Ivan")

		require.ErrorIs(t, f.svc.ImportSteps(f.ctx, "ivan", StepsImportRequest{URL: "https://www.notion.so/x"}), ErrNotHost)
		require.Empty(t, importer.urls)
	})
}

func TestRoomStats(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	roomID := f.createRoom(t, "host")

	_, err := f.svc.RoomStats(roomID)
	req.ErrorIs(err, ErrNoSteps)
	_, err = f.svc.RoomStats(1)
	req.ErrorIs(err, ErrRoomNotFound)

	ivanID := f.join(t, "ivan", roomID, "Ivan")
	req.NoError(f.svc.StatusToMentor(f.ctx, "ivan", StepStatusToMentorRequest{
		"1": models.StepDone, "2": models.StepAccepted, "3": models.StepHelp,
	}))

	stats, err := f.svc.RoomStats(roomID)
	req.NoError(err)
	req.Equal(roomID, stats.RoomID)
	req.Len(stats.Students, 1)
	req.Equal(ivanID, stats.Students[0].UserID)
	req.Equal("Ivan", stats.Students[0].Name)
	req.Equal(2, stats.Students[0].Done)
	req.Equal(3, stats.Students[0].Total)
	req.Equal(67, stats.Students[0].Percent)
}
