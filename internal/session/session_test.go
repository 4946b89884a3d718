package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inductionlog/internal/domain"
	"inductionlog/internal/policy"
)

func TestSubscribeReceivesSnapshots(t *testing.T) {
	s := New(domain.NewFormConfig(domain.RoleMentee))
	var got []domain.FormConfig
	unsubscribe := s.Subscribe(func(c domain.FormConfig) { got = append(got, c) })

	assert.Empty(t, got, "subscribe must not replay the current value")

	s.AddMentorMeeting()
	s.AddClassroomVisit()
	require.Len(t, got, 2)
	assert.Len(t, got[0].Data.MentorMeetings, 2)
	assert.Len(t, got[1].Data.ClassroomVisits, 2)

	// Snapshots are copies.
	got[1].Data.MentorMeetings[0].Topic = "tampered"
	assert.Equal(t, "", s.Data().MentorMeetings[0].Topic)

	unsubscribe()
	unsubscribe()
	s.AddOtherActivity()
	assert.Len(t, got, 2)
}

func TestAddRemoveSymmetry(t *testing.T) {
	s := New(domain.NewFormConfig(domain.RoleMentee))
	before := s.Data()

	s.AddTeamMeeting()
	s.RemoveTeamMeeting(len(s.Data().TeamMeetings) - 1)
	assert.Equal(t, before, s.Data())

	s.RemoveOtherActivity(7)
	s.RemoveOtherActivity(-1)
	assert.Equal(t, before, s.Data())
}

func TestEntriesByKind(t *testing.T) {
	s := New(domain.NewFormConfig(domain.RoleAdmin))
	require.NoError(t, s.AddEntry(domain.ClassroomVisits))
	assert.Len(t, s.Data().ClassroomVisits, 2)
	require.NoError(t, s.RemoveEntry(domain.ClassroomVisits, 0))
	assert.Len(t, s.Data().ClassroomVisits, 1)

	assert.ErrorIs(t, s.AddEntry(domain.SummerAcademy), domain.ErrFixedSection)
	assert.ErrorIs(t, s.RemoveEntry(domain.InductionSeminars, 0), domain.ErrFixedSection)
	assert.Len(t, s.Data().SummerAcademy, 4)
	assert.Len(t, s.Data().InductionSeminars, 4)
}

func TestSetFieldChecksRole(t *testing.T) {
	s := New(domain.NewFormConfig(domain.RoleMentor))
	calls := 0
	s.Subscribe(func(domain.FormConfig) { calls++ })

	err := s.SetField(domain.FieldRef{Section: "coverPage", Field: "inductee"}, "Jane")
	var fe policy.ForbiddenFieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 0, calls)

	ref := domain.FieldRef{Section: "mentorMeetings", Index: 0, Field: "initialsYearOne"}
	require.NoError(t, s.SetField(ref, "MT"))
	assert.Equal(t, "MT", s.Data().MentorMeetings[0].InitialsYearOne)
	assert.Equal(t, 1, calls)

	err = s.SetField(domain.FieldRef{Section: "mentorMeetings", Index: 3, Field: "initialsYearOne"}, "MT")
	assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)
	assert.Equal(t, 1, calls)
}

func TestSetConfigDerivesEditability(t *testing.T) {
	s := New(domain.NewFormConfig(domain.RoleMentee))
	cfg := domain.NewFormConfig(domain.RoleAdmin)
	cfg.Editable = domain.Editability{}
	s.SetConfig(cfg)

	got := s.Config()
	assert.True(t, got.Editable.Inductee)
	assert.True(t, got.Editable.Verifications.OtherActivities)
	assert.Equal(t, domain.RoleAdmin, s.Role())

	s.Replace(domain.FormConfig{UserRole: domain.RoleMentor})
	assert.False(t, s.Config().Editable.Inductee, "Replace stores the config untouched")
}

func TestConcurrentUpdates(t *testing.T) {
	s := New(domain.NewFormConfig(domain.RoleMentee))
	var mu sync.Mutex
	var lengths []int
	s.Subscribe(func(c domain.FormConfig) {
		mu.Lock()
		lengths = append(lengths, len(c.Data.MentorMeetings))
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddMentorMeeting()
		}()
	}
	wg.Wait()

	assert.Len(t, s.Data().MentorMeetings, 51)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, lengths, 50)
	for i, n := range lengths {
		assert.Equal(t, i+2, n, "notification %d out of order", i)
	}
}

func TestNotificationsFollowChangeOrder(t *testing.T) {
	s := New(domain.NewFormConfig(domain.RoleMentee))
	parked := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var seen []string
	s.Subscribe(func(c domain.FormConfig) {
		if c.Data.Inductee == "A" {
			close(parked)
			<-release
		}
		mu.Lock()
		seen = append(seen, c.Data.Inductee)
		mu.Unlock()
	})
	setInductee := func(v string) {
		s.Update(func(d domain.FormData) domain.FormData {
			d.Inductee = v
			return d
		})
	}

	go setInductee("A")
	<-parked
	done := make(chan struct{})
	go func() {
		setInductee("B")
		close(done)
	}()
	assert.Never(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond, "a later change must wait for earlier listeners")

	close(release)
	<-done
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"A", "B"}, seen)
	assert.Equal(t, "B", s.Data().Inductee)
}
