package store

import (
	"context"
	"fmt"
	"time"

	"github.com/psychx/careercoach/internal/model"
)

// Export builds the offline review bundle: every session, a summary of every
// tracker and per-consultant session counts.
func (s *Store) Export(ctx context.Context) (*model.Export, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	trackers, err := s.ListTrackers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trackers: %w", err)
	}
	consultants, err := s.ListConsultants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list consultants: %w", err)
	}

	out := &model.Export{
		GeneratedAt: time.Now().UTC(),
		Sessions:    sessions,
	}

	users := make(map[string]*model.User)
	for _, t := range trackers {
		u, ok := users[t.UserID]
		if !ok {
			u, err = s.GetUserByID(ctx, t.UserID)
			if err != nil {
				return nil, fmt.Errorf("get user %s: %w", t.UserID, err)
			}
			users[t.UserID] = u
		}
		sum := model.TrackerSummary{
			TrackerID:            t.ID,
			CareerTitle:          t.CareerTitle,
			CurrentPhaseIndex:    t.CurrentPhaseIndex,
			TotalWeeksCompleted:  t.TotalWeeksCompleted,
			OverallProgressScore: t.OverallProgressScore,
		}
		if u != nil {
			sum.LearnerEmail = u.Email
			sum.LearnerName = u.DisplayName()
		}
		for _, w := range t.History {
			wr := model.WeekResult{
				WeekNumber:     w.WeekNumber,
				Title:          w.Title,
				CompletionRate: w.CompletionRate,
				QuizTaken:      w.Quiz.Taken(),
			}
			if wr.QuizTaken {
				wr.QuizScore = w.Quiz.Score
				wr.QuizPassed = w.Quiz.Passed
			}
			sum.Weeks = append(sum.Weeks, wr)
		}
		out.Trackers = append(out.Trackers, sum)
	}

	load := make(map[string]*model.ConsultantLoad)
	for _, c := range consultants {
		cl := &model.ConsultantLoad{ConsultantID: c.ID, ConsultantName: c.DisplayName()}
		load[c.ID] = cl
	}
	for _, sess := range sessions {
		cl, ok := load[sess.ConsultantID]
		if !ok {
			continue
		}
		switch sess.Status {
		case model.SessionScheduled:
			cl.Scheduled++
		case model.SessionCompleted:
			cl.Completed++
		}
	}
	for _, c := range consultants {
		out.Consultants = append(out.Consultants, *load[c.ID])
	}
	return out, nil
}
