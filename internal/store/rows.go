package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nhle/lifeplan/internal/model"
)

type workspaceRow struct {
	headerRow
	Name                string `db:"name"`
	Timezone            string `db:"timezone"`
	DefaultProjectRefID string `db:"default_project_ref_id"`
	Features            string `db:"features"`
}

var workspaceTable = newEntityTable(model.EntityWorkspace, "",
	[]string{"name", "timezone", "default_project_ref_id", "features"},
	func(w model.Workspace) (*workspaceRow, error) {
		features, err := json.Marshal(w.Features)
		if err != nil {
			return nil, err
		}
		return &workspaceRow{
			headerRow:           headerFrom(w.Entity),
			Name:                w.Name,
			Timezone:            w.Timezone,
			DefaultProjectRefID: w.DefaultProjectRefID,
			Features:            string(features),
		}, nil
	},
	func(r *workspaceRow) (model.Workspace, error) {
		w := model.Workspace{
			Entity:              r.entity(model.EntityWorkspace),
			Name:                r.Name,
			Timezone:            r.Timezone,
			DefaultProjectRefID: r.DefaultProjectRefID,
		}
		if err := json.Unmarshal([]byte(r.Features), &w.Features); err != nil {
			return w, fmt.Errorf("decoding workspace %s features: %w", r.RefID, err)
		}
		return w, nil
	},
	func(r *workspaceRow) *headerRow { return &r.headerRow },
)

type projectRow struct {
	headerRow
	WorkspaceRefID     string  `db:"workspace_ref_id"`
	Key                string  `db:"key"`
	Name               string  `db:"name"`
	ParentProjectRefID *string `db:"parent_project_ref_id"`
}

var projectTable = newEntityTable(model.EntityProject, "workspace_ref_id",
	[]string{"workspace_ref_id", "key", "name", "parent_project_ref_id"},
	func(p model.Project) (*projectRow, error) {
		return &projectRow{
			headerRow:          headerFrom(p.Entity),
			WorkspaceRefID:     p.WorkspaceRefID,
			Key:                p.Key,
			Name:               p.Name,
			ParentProjectRefID: p.ParentProjectRefID,
		}, nil
	},
	func(r *projectRow) (model.Project, error) {
		return model.Project{
			Entity:             r.entity(model.EntityProject),
			WorkspaceRefID:     r.WorkspaceRefID,
			Key:                r.Key,
			Name:               r.Name,
			ParentProjectRefID: r.ParentProjectRefID,
		}, nil
	},
	func(r *projectRow) *headerRow { return &r.headerRow },
)

type recurringTaskRow struct {
	headerRow
	WorkspaceRefID string     `db:"workspace_ref_id"`
	ProjectRefID   string     `db:"project_ref_id"`
	Name           string     `db:"name"`
	Type           string     `db:"type"`
	Period         string     `db:"period"`
	GenParams      string     `db:"gen_params"`
	SkipRule       *string    `db:"skip_rule"`
	Suspended      bool       `db:"suspended"`
	MustDo         bool       `db:"must_do"`
	StartAtDate    time.Time  `db:"start_at_date"`
	EndAtDate      *time.Time `db:"end_at_date"`
}

var recurringTaskTable = newEntityTable(model.EntityRecurringTask, "workspace_ref_id",
	[]string{
		"workspace_ref_id", "project_ref_id", "name", "type", "period", "gen_params",
		"skip_rule", "suspended", "must_do", "start_at_date", "end_at_date",
	},
	func(rt model.RecurringTask) (*recurringTaskRow, error) {
		params, err := json.Marshal(rt.GenParams)
		if err != nil {
			return nil, err
		}
		return &recurringTaskRow{
			headerRow:      headerFrom(rt.Entity),
			WorkspaceRefID: rt.WorkspaceRefID,
			ProjectRefID:   rt.ProjectRefID,
			Name:           rt.Name,
			Type:           string(rt.Type),
			Period:         string(rt.GenParams.Period),
			GenParams:      string(params),
			SkipRule:       rt.SkipRule,
			Suspended:      rt.Suspended,
			MustDo:         rt.MustDo,
			StartAtDate:    rt.StartAtDate.UTC(),
			EndAtDate:      utc(rt.EndAtDate),
		}, nil
	},
	func(r *recurringTaskRow) (model.RecurringTask, error) {
		rt := model.RecurringTask{
			Entity:         r.entity(model.EntityRecurringTask),
			WorkspaceRefID: r.WorkspaceRefID,
			ProjectRefID:   r.ProjectRefID,
			Name:           r.Name,
			Type:           model.RecurringTaskType(r.Type),
			SkipRule:       r.SkipRule,
			Suspended:      r.Suspended,
			MustDo:         r.MustDo,
			StartAtDate:    r.StartAtDate.UTC(),
			EndAtDate:      utc(r.EndAtDate),
		}
		if err := json.Unmarshal([]byte(r.GenParams), &rt.GenParams); err != nil {
			return rt, fmt.Errorf("decoding recurring task %s gen params: %w", r.RefID, err)
		}
		return rt, nil
	},
	func(r *recurringTaskRow) *headerRow { return &r.headerRow },
)

type statusTimesRow struct {
	AcceptedTime  *time.Time `db:"accepted_time"`
	WorkingTime   *time.Time `db:"working_time"`
	CompletedTime *time.Time `db:"completed_time"`
}

func statusTimesFrom(st model.StatusTimes) statusTimesRow {
	return statusTimesRow{
		AcceptedTime:  utc(st.AcceptedTime),
		WorkingTime:   utc(st.WorkingTime),
		CompletedTime: utc(st.CompletedTime),
	}
}

func (r statusTimesRow) statusTimes() model.StatusTimes {
	return model.StatusTimes{
		AcceptedTime:  utc(r.AcceptedTime),
		WorkingTime:   utc(r.WorkingTime),
		CompletedTime: utc(r.CompletedTime),
	}
}

type inboxTaskRow struct {
	headerRow
	statusTimesRow
	WorkspaceRefID       string     `db:"workspace_ref_id"`
	ProjectRefID         string     `db:"project_ref_id"`
	Name                 string     `db:"name"`
	Status               string     `db:"status"`
	Source               string     `db:"source"`
	SourceRefID          *string    `db:"source_ref_id"`
	Eisen                string     `db:"eisen"`
	Difficulty           *string    `db:"difficulty"`
	ActionableDate       *time.Time `db:"actionable_date"`
	DueDate              *time.Time `db:"due_date"`
	RecurringTimeline    *string    `db:"recurring_timeline"`
	RecurringType        *string    `db:"recurring_type"`
	RecurringGenRightNow *time.Time `db:"recurring_gen_right_now"`
}

var inboxTaskTable = newEntityTable(model.EntityInboxTask, "workspace_ref_id",
	[]string{
		"workspace_ref_id", "project_ref_id", "name", "status", "source", "source_ref_id",
		"eisen", "difficulty", "actionable_date", "due_date",
		"recurring_timeline", "recurring_type", "recurring_gen_right_now",
		"accepted_time", "working_time", "completed_time",
	},
	func(t model.InboxTask) (*inboxTaskRow, error) {
		eisen, err := json.Marshal(orEmpty(t.Eisen))
		if err != nil {
			return nil, err
		}
		var recurringType *string
		if t.RecurringType != nil {
			s := string(*t.RecurringType)
			recurringType = &s
		}
		return &inboxTaskRow{
			headerRow:            headerFrom(t.Entity),
			statusTimesRow:       statusTimesFrom(t.StatusTimes),
			WorkspaceRefID:       t.WorkspaceRefID,
			ProjectRefID:         t.ProjectRefID,
			Name:                 t.Name,
			Status:               string(t.Status),
			Source:               string(t.Source),
			SourceRefID:          t.SourceRefID,
			Eisen:                string(eisen),
			Difficulty:           difficultyString(t.Difficulty),
			ActionableDate:       utc(t.ActionableDate),
			DueDate:              utc(t.DueDate),
			RecurringTimeline:    t.RecurringTimeline,
			RecurringType:        recurringType,
			RecurringGenRightNow: utc(t.RecurringGenRightNow),
		}, nil
	},
	func(r *inboxTaskRow) (model.InboxTask, error) {
		t := model.InboxTask{
			Entity:               r.entity(model.EntityInboxTask),
			StatusTimes:          r.statusTimes(),
			WorkspaceRefID:       r.WorkspaceRefID,
			ProjectRefID:         r.ProjectRefID,
			Name:                 r.Name,
			Status:               model.InboxTaskStatus(r.Status),
			Source:               model.InboxTaskSource(r.Source),
			SourceRefID:          r.SourceRefID,
			Difficulty:           parseDifficulty(r.Difficulty),
			ActionableDate:       utc(r.ActionableDate),
			DueDate:              utc(r.DueDate),
			RecurringTimeline:    r.RecurringTimeline,
			RecurringGenRightNow: utc(r.RecurringGenRightNow),
		}
		if r.RecurringType != nil {
			rt := model.RecurringTaskType(*r.RecurringType)
			t.RecurringType = &rt
		}
		if err := json.Unmarshal([]byte(r.Eisen), &t.Eisen); err != nil {
			return t, fmt.Errorf("decoding inbox task %s eisen: %w", r.RefID, err)
		}
		if len(t.Eisen) == 0 {
			t.Eisen = nil
		}
		return t, nil
	},
	func(r *inboxTaskRow) *headerRow { return &r.headerRow },
)

type bigPlanRow struct {
	headerRow
	statusTimesRow
	WorkspaceRefID string     `db:"workspace_ref_id"`
	ProjectRefID   string     `db:"project_ref_id"`
	Name           string     `db:"name"`
	Status         string     `db:"status"`
	ActionableDate *time.Time `db:"actionable_date"`
	DueDate        *time.Time `db:"due_date"`
}

var bigPlanTable = newEntityTable(model.EntityBigPlan, "workspace_ref_id",
	[]string{
		"workspace_ref_id", "project_ref_id", "name", "status",
		"actionable_date", "due_date", "accepted_time", "working_time", "completed_time",
	},
	func(bp model.BigPlan) (*bigPlanRow, error) {
		return &bigPlanRow{
			headerRow:      headerFrom(bp.Entity),
			statusTimesRow: statusTimesFrom(bp.StatusTimes),
			WorkspaceRefID: bp.WorkspaceRefID,
			ProjectRefID:   bp.ProjectRefID,
			Name:           bp.Name,
			Status:         string(bp.Status),
			ActionableDate: utc(bp.ActionableDate),
			DueDate:        utc(bp.DueDate),
		}, nil
	},
	func(r *bigPlanRow) (model.BigPlan, error) {
		return model.BigPlan{
			Entity:         r.entity(model.EntityBigPlan),
			StatusTimes:    r.statusTimes(),
			WorkspaceRefID: r.WorkspaceRefID,
			ProjectRefID:   r.ProjectRefID,
			Name:           r.Name,
			Status:         model.InboxTaskStatus(r.Status),
			ActionableDate: utc(r.ActionableDate),
			DueDate:        utc(r.DueDate),
		}, nil
	},
	func(r *bigPlanRow) *headerRow { return &r.headerRow },
)

type metricRow struct {
	headerRow
	WorkspaceRefID   string  `db:"workspace_ref_id"`
	Key              string  `db:"key"`
	Name             string  `db:"name"`
	CollectionParams *string `db:"collection_params"`
}

var metricTable = newEntityTable(model.EntityMetric, "workspace_ref_id",
	[]string{"workspace_ref_id", "key", "name", "collection_params"},
	func(m model.Metric) (*metricRow, error) {
		params, err := encodeGenParams(m.CollectionParams)
		if err != nil {
			return nil, err
		}
		return &metricRow{
			headerRow:        headerFrom(m.Entity),
			WorkspaceRefID:   m.WorkspaceRefID,
			Key:              m.Key,
			Name:             m.Name,
			CollectionParams: params,
		}, nil
	},
	func(r *metricRow) (model.Metric, error) {
		params, err := decodeGenParams(r.CollectionParams)
		if err != nil {
			return model.Metric{}, fmt.Errorf("decoding metric %s collection params: %w", r.RefID, err)
		}
		return model.Metric{
			Entity:           r.entity(model.EntityMetric),
			WorkspaceRefID:   r.WorkspaceRefID,
			Key:              r.Key,
			Name:             r.Name,
			CollectionParams: params,
		}, nil
	},
	func(r *metricRow) *headerRow { return &r.headerRow },
)

type personRow struct {
	headerRow
	WorkspaceRefID          string  `db:"workspace_ref_id"`
	Name                    string  `db:"name"`
	CatchUpParams           *string `db:"catch_up_params"`
	Birthday                *string `db:"birthday"`
	BirthdayPreparationDays int     `db:"birthday_preparation_days"`
}

var personTable = newEntityTable(model.EntityPerson, "workspace_ref_id",
	[]string{"workspace_ref_id", "name", "catch_up_params", "birthday", "birthday_preparation_days"},
	func(p model.Person) (*personRow, error) {
		params, err := encodeGenParams(p.CatchUpParams)
		if err != nil {
			return nil, err
		}
		var birthday *string
		if p.Birthday != nil {
			s := p.Birthday.String()
			birthday = &s
		}
		return &personRow{
			headerRow:               headerFrom(p.Entity),
			WorkspaceRefID:          p.WorkspaceRefID,
			Name:                    p.Name,
			CatchUpParams:           params,
			Birthday:                birthday,
			BirthdayPreparationDays: p.BirthdayPreparationDays,
		}, nil
	},
	func(r *personRow) (model.Person, error) {
		params, err := decodeGenParams(r.CatchUpParams)
		if err != nil {
			return model.Person{}, fmt.Errorf("decoding person %s catch up params: %w", r.RefID, err)
		}
		p := model.Person{
			Entity:                  r.entity(model.EntityPerson),
			WorkspaceRefID:          r.WorkspaceRefID,
			Name:                    r.Name,
			CatchUpParams:           params,
			BirthdayPreparationDays: r.BirthdayPreparationDays,
		}
		if r.Birthday != nil {
			b, err := model.ParseBirthday(*r.Birthday)
			if err != nil {
				return p, err
			}
			p.Birthday = &b
		}
		return p, nil
	},
	func(r *personRow) *headerRow { return &r.headerRow },
)

type vacationRow struct {
	headerRow
	WorkspaceRefID string    `db:"workspace_ref_id"`
	Name           string    `db:"name"`
	StartDate      time.Time `db:"start_date"`
	EndDate        time.Time `db:"end_date"`
}

var vacationTable = newEntityTable(model.EntityVacation, "workspace_ref_id",
	[]string{"workspace_ref_id", "name", "start_date", "end_date"},
	func(v model.Vacation) (*vacationRow, error) {
		return &vacationRow{
			headerRow:      headerFrom(v.Entity),
			WorkspaceRefID: v.WorkspaceRefID,
			Name:           v.Name,
			StartDate:      v.StartDate.UTC(),
			EndDate:        v.EndDate.UTC(),
		}, nil
	},
	func(r *vacationRow) (model.Vacation, error) {
		return model.Vacation{
			Entity:         r.entity(model.EntityVacation),
			WorkspaceRefID: r.WorkspaceRefID,
			Name:           r.Name,
			StartDate:      r.StartDate.UTC(),
			EndDate:        r.EndDate.UTC(),
		}, nil
	},
	func(r *vacationRow) *headerRow { return &r.headerRow },
)

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func orEmpty(e []model.Eisen) []model.Eisen {
	if e == nil {
		return []model.Eisen{}
	}
	return e
}

func difficultyString(d *model.Difficulty) *string {
	if d == nil {
		return nil
	}
	s := string(*d)
	return &s
}

func parseDifficulty(s *string) *model.Difficulty {
	if s == nil {
		return nil
	}
	d := model.Difficulty(*s)
	return &d
}

func encodeGenParams(p *model.GenParams) (*string, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func decodeGenParams(s *string) (*model.GenParams, error) {
	if s == nil {
		return nil, nil
	}
	var p model.GenParams
	if err := json.Unmarshal([]byte(*s), &p); err != nil {
		return nil, err
	}
	return &p, nil
}
