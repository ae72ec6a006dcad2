package app

import (
	"sort"
	"strconv"

	"simulado-service/internal/domain"
)

// buildScoreReport joins a submission's lines with the prompts of its exam snapshot.
// Correctness only ever looks at the answers stored on the lines.
func buildScoreReport(exam domain.Exam, sub domain.Submission) (domain.ScoreReport, error) {
	if len(sub.Lines) == 0 {
		return domain.ScoreReport{}, domain.Invalid("submission %s has no answers to score", sub.ID)
	}

	results := make([]domain.QuestionResult, 0, len(sub.Lines))
	correct := 0
	for _, line := range sub.Lines {
		var prompt string
		if q, ok := exam.Question(line.QuestionID); ok {
			prompt = q.Prompt
		}
		isCorrect := line.Correct()
		if isCorrect {
			correct++
		}
		results = append(results, domain.QuestionResult{
			QuestionID:    line.QuestionID,
			Prompt:        prompt,
			CorrectAnswer: line.CorrectAnswer,
			GivenAnswer:   line.GivenAnswer,
			IsCorrect:     isCorrect,
		})
	}

	total := len(results)
	percent := 100 * float64(correct) / float64(total)
	return domain.ScoreReport{
		SubmissionID:    sub.ID,
		ExamID:          sub.ExamID,
		ExamName:        exam.ExamName,
		ParticipantName: sub.ParticipantName,
		PerQuestion:     results,
		CorrectCount:    correct,
		TotalCount:      total,
		ScorePercent:    percent,
		Score:           formatPercent(percent),
	}, nil
}

// formatPercent renders p unrounded: the shortest decimal that parses back to p.
func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64) + "%"
}

// rankTallies orders tallies by correct count desc, then earliest submission, then id,
// and numbers them 1..n. Equal counts still get distinct ranks.
func rankTallies(tallies []domain.SubmissionTally) []domain.LeaderboardEntry {
	sorted := make([]domain.SubmissionTally, len(tallies))
	copy(sorted, tallies)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CorrectCount != sorted[j].CorrectCount {
			return sorted[i].CorrectCount > sorted[j].CorrectCount
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].SubmissionID < sorted[j].SubmissionID
	})

	entries := make([]domain.LeaderboardEntry, 0, len(sorted))
	for i, t := range sorted {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:            i + 1,
			SubmissionID:    t.SubmissionID,
			ParticipantName: t.ParticipantName,
			CorrectCount:    t.CorrectCount,
			IncorrectCount:  t.IncorrectCount,
			SubmittedAt:     t.CreatedAt,
		})
	}
	return entries
}

// snapshotLines checks that answers cover the exam one-to-one and copies the
// exam's correct answer onto every line, in exam order.
func snapshotLines(exam domain.Exam, answers []domain.AnswerInput) ([]domain.AnswerLine, error) {
	byQuestion := make(map[int64]domain.AnswerInput, len(answers))
	for i, a := range answers {
		if _, ok := exam.Question(a.QuestionID); !ok {
			return nil, domain.Invalid("answers[%d]: question %d is not part of exam %s", i, a.QuestionID, exam.ID)
		}
		if _, dup := byQuestion[a.QuestionID]; dup {
			return nil, domain.Invalid("answers[%d]: question %d answered twice", i, a.QuestionID)
		}
		byQuestion[a.QuestionID] = a
	}
	if len(byQuestion) != len(exam.Questions) {
		return nil, domain.Invalid("answers cover %d of %d questions", len(byQuestion), len(exam.Questions))
	}

	lines := make([]domain.AnswerLine, 0, len(exam.Questions))
	for i, q := range exam.Questions {
		a := byQuestion[q.QuestionID]
		correct := q.CorrectAnswer
		var given *string
		if a.GivenAnswer != nil {
			g := *a.GivenAnswer
			given = &g
		}
		lines = append(lines, domain.AnswerLine{
			Position:      i + 1,
			QuestionID:    q.QuestionID,
			GivenAnswer:   given,
			CorrectAnswer: &correct,
		})
	}
	return lines, nil
}
