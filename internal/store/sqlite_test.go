package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"classim/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "classim.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return repo
}

func sampleSession(id string) *domain.Session {
	return &domain.Session{
		ID:         id,
		SchoolType: domain.SchoolElementary,
		Grade:      5,
		Subject:    domain.SubjectMath,
		TopicName:  "分数のかけ算",
		LessonGoal: "分数のかけ算の意味と計算のしかたを理解する",
		Curriculum: domain.Curriculum{
			Overview:        "分数のかけ算を段階的に学ぶ",
			GoalExplanation: "分数に整数をかける計算から始めて、分数同士のかけ算へ進む。",
			Phases: []domain.PhasePlan{
				{Phase: domain.PhaseIntro, Title: "導入", Objective: "既習事項の確認"},
			},
		},
		Teacher: domain.Teacher{
			ID: "t-1", Name: "佐藤 美咲", Age: 38,
			Personality: domain.TeacherGentle, TeachingStyle: domain.StyleDialogue,
		},
		Students: []domain.Student{
			{
				ID: "s-1", Name: "田中 太郎", Gender: "male",
				Personality: domain.StudentActive, AcademicLevel: 4,
				Concentration: domain.ConcentrationHigh,
				Hobbies:       []string{"サッカー"},
				SeatPosition:  domain.SeatPosition{Row: 1, Col: 2},
			},
			{
				ID: "s-2", Name: "鈴木 花子", Gender: "female",
				Personality: domain.StudentSerious, AcademicLevel: 5,
				Concentration: domain.ConcentrationMedium,
			},
		},
		GoalExplanation: "本時では分数のかけ算を扱う。",
		CreatedAt:       time.Now().Truncate(time.Second),
	}
}

func TestSessionRoundTrip(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()

	want := sampleSession("session-1")
	if err := repo.CreateSession(ctx, want); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := repo.GetSession(ctx, "session-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil {
		t.Fatal("GetSession returned nil for existing session")
	}

	if got.ID != want.ID || got.SchoolType != want.SchoolType || got.Grade != want.Grade {
		t.Errorf("session identity mismatch: got %+v", got)
	}
	if got.LessonGoal != want.LessonGoal || got.TopicName != want.TopicName {
		t.Errorf("lesson fields mismatch: got %q / %q", got.TopicName, got.LessonGoal)
	}
	if got.Teacher.Name != want.Teacher.Name || got.Teacher.Personality != want.Teacher.Personality {
		t.Errorf("teacher mismatch: got %+v", got.Teacher)
	}
	if len(got.Students) != 2 {
		t.Fatalf("got %d students, want 2", len(got.Students))
	}
	if got.Students[0].SeatPosition != want.Students[0].SeatPosition {
		t.Errorf("seat position mismatch: got %+v", got.Students[0].SeatPosition)
	}
	if len(got.Curriculum.Phases) != 1 || got.Curriculum.Phases[0].Phase != domain.PhaseIntro {
		t.Errorf("curriculum mismatch: got %+v", got.Curriculum)
	}
	if got.GoalExplanation != want.GoalExplanation {
		t.Errorf("goal explanation mismatch: got %q", got.GoalExplanation)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("created_at mismatch: got %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)

	got, err := repo.GetSession(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for missing session", got)
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()

	older := sampleSession("session-old")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := sampleSession("session-new")

	if err := repo.CreateSession(ctx, older); err != nil {
		t.Fatalf("CreateSession(old): %v", err)
	}
	if err := repo.CreateSession(ctx, newer); err != nil {
		t.Fatalf("CreateSession(new): %v", err)
	}

	sessions, err := repo.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[0].ID != "session-new" || sessions[1].ID != "session-old" {
		t.Errorf("order = [%s, %s], want newest first", sessions[0].ID, sessions[1].ID)
	}
}

func TestUtteranceOrder(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.CreateSession(ctx, sampleSession("session-1")); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	lines := []string{"起立！", "礼！", "着席！"}
	for i, line := range lines {
		u := &domain.Utterance{
			ID:          "u-" + line,
			SessionID:   "session-1",
			SpeakerID:   "s-1",
			SpeakerType: domain.SpeakerStudent,
			SpeakerName: "田中 太郎",
			Content:     line,
			Timestamp:   float64(i) * 0.5,
			Phase:       domain.PhaseStart,
		}
		if err := repo.SaveUtterance(ctx, u); err != nil {
			t.Fatalf("SaveUtterance(%q): %v", line, err)
		}
	}

	got, err := repo.ListUtterances(ctx, "session-1")
	if err != nil {
		t.Fatalf("ListUtterances: %v", err)
	}
	if len(got) != len(lines) {
		t.Fatalf("got %d utterances, want %d", len(got), len(lines))
	}
	for i, want := range lines {
		if got[i].Content != want {
			t.Errorf("utterance %d = %q, want %q", i, got[i].Content, want)
		}
	}
	if got[1].Phase != domain.PhaseStart || got[1].SpeakerType != domain.SpeakerStudent {
		t.Errorf("utterance fields lost in round trip: %+v", got[1])
	}
}

func TestDeleteSessionRemovesTranscript(t *testing.T) {
	t.Parallel()

	repo := newTestStore(t)
	ctx := context.Background()

	if err := repo.CreateSession(ctx, sampleSession("session-1")); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	u := &domain.Utterance{
		ID: "u-1", SessionID: "session-1", SpeakerID: "t-1",
		SpeakerType: domain.SpeakerTeacher, SpeakerName: "佐藤 美咲",
		Content: "今日の授業を始めます。", Phase: domain.PhaseStart,
	}
	if err := repo.SaveUtterance(ctx, u); err != nil {
		t.Fatalf("SaveUtterance: %v", err)
	}

	if err := repo.DeleteSession(ctx, "session-1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	session, err := repo.GetSession(ctx, "session-1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session != nil {
		t.Error("session still present after delete")
	}

	utterances, err := repo.ListUtterances(ctx, "session-1")
	if err != nil {
		t.Fatalf("ListUtterances: %v", err)
	}
	if len(utterances) != 0 {
		t.Errorf("%d utterances remain after delete", len(utterances))
	}
}
