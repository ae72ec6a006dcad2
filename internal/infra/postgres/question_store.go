package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"simulado-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionStore reads the question bank. The table belongs to the authoring
// side and keeps its column names.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

// fieldColumns is the only source of column names interpolated into queries.
var fieldColumns = map[domain.QuestionField]string{
	domain.FieldBoard:       "banca",
	domain.FieldInstitution: "instituicao",
	domain.FieldExam:        "prova",
	domain.FieldLevel:       "nivel",
	domain.FieldSubject:     "disciplina",
	domain.FieldTopic:       "assunto",
}

func (s *QuestionStore) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	var (
		q   domain.Question
		raw []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id,
		        COALESCE(banca, ''), COALESCE(instituicao, ''), COALESCE(prova, ''),
		        COALESCE(nivel, ''), COALESCE(disciplina, ''), COALESCE(assunto, ''),
		        pergunta, COALESCE(texto_aux, ''), alternativas, resposta_correta,
		        COALESCE(explicacao, '')
		 FROM questions WHERE id = $1`, id).
		Scan(&q.ID, &q.Board, &q.Institution, &q.Exam, &q.Level, &q.Subject, &q.Topic,
			&q.Prompt, &q.AuxText, &raw, &q.CorrectAnswer, &q.Explanation)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, storeErr("load question", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &q.Alternatives); err != nil {
			return domain.Question{}, storeErr("unmarshal alternatives", err)
		}
	}
	return q, nil
}

func (s *QuestionStore) DistinctValues(ctx context.Context, field domain.QuestionField) ([]string, error) {
	column, ok := fieldColumns[field]
	if !ok {
		return nil, domain.Invalid("unknown question field %q", field)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT `+column+` FROM questions
		 WHERE `+column+` IS NOT NULL AND `+column+` <> ''
		 ORDER BY 1`)
	if err != nil {
		return nil, storeErr("query distinct "+column, err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, storeErr("scan distinct "+column, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate distinct "+column, err)
	}
	return values, nil
}
