package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/scrimverse-engine/models"
	"github.com/Dosada05/scrimverse-engine/repositories"
)

// In-memory репозитории для юнит-тестов сервисного слоя. Работают поверх
// nil-базы: runInTx пропускает транзакцию, exec везде игнорируется.

type fakeTournamentRepo struct {
	mu          sync.Mutex
	nextID      int
	tournaments map[int]*models.Tournament
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{nextID: 1, tournaments: map[int]*models.Tournament{}}
}

// cloneTournament копирует турнир вместе с JSONB-картами. LockByID и GetByID
// отдают копию: изменения видны остальным только после UpdateRoundState,
// как и с настоящей базой.
func cloneTournament(t *models.Tournament) *models.Tournament {
	c := *t
	if t.Rounds != nil {
		c.Rounds = append(models.RoundConfigList{}, t.Rounds...)
	}
	if t.RoundStatus != nil {
		c.RoundStatus = models.RoundStateMap{}
		for k, v := range t.RoundStatus {
			c.RoundStatus[k] = v
		}
	}
	if t.SelectedTeams != nil {
		c.SelectedTeams = models.SelectedTeamsMap{}
		for k, v := range t.SelectedTeams {
			c.SelectedTeams[k] = append([]int{}, v...)
		}
	}
	if t.Winners != nil {
		c.Winners = models.WinnersMap{}
		for k, v := range t.Winners {
			c.Winners[k] = v
		}
	}
	return &c
}

func (r *fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.nextID
	r.nextID++
	r.tournaments[t.ID] = cloneTournament(t)
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return cloneTournament(t), nil
}

func (r *fakeTournamentRepo) LockByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *fakeTournamentRepo) List(_ context.Context, _ repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Tournament, 0, len(r.tournaments))
	for _, t := range r.tournaments {
		out = append(out, *cloneTournament(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) Update(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tournaments[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	r.tournaments[t.ID] = cloneTournament(t)
	return nil
}

func (r *fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	return nil
}

func (r *fakeTournamentRepo) UpdateRoundState(_ context.Context, _ repositories.SQLExecutor, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tournaments[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	r.tournaments[t.ID] = cloneTournament(t)
	return nil
}

func (r *fakeTournamentRepo) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tournaments, id)
	return nil
}

func (r *fakeTournamentRepo) GetTournamentsForAutoStatusUpdate(_ context.Context, _ repositories.SQLExecutor, now time.Time) ([]*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Tournament
	for _, t := range r.tournaments {
		switch {
		case t.Status == models.StatusUpcoming && !t.StartDate.After(now),
			t.Status == models.StatusOngoing && !t.EndDate.After(now):
			out = append(out, cloneTournament(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) ListCompleted(_ context.Context, _ repositories.SQLExecutor) ([]*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Tournament
	for _, t := range r.tournaments {
		if t.Status == models.StatusCompleted {
			out = append(out, cloneTournament(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeRegistrationRepo struct {
	mu     sync.Mutex
	nextID int
	regs   map[int]models.Registration
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{nextID: 1, regs: map[int]models.Registration{}}
}

func (r *fakeRegistrationRepo) Create(_ context.Context, _ repositories.SQLExecutor, reg *models.Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg.ID = r.nextID
	r.nextID++
	r.regs[reg.ID] = *reg
	return nil
}

func (r *fakeRegistrationRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[id]
	if !ok {
		return nil, repositories.ErrRegistrationNotFound
	}
	return &reg, nil
}

func (r *fakeRegistrationRepo) ListConfirmedByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Registration
	for _, reg := range r.regs {
		if reg.TournamentID == tournamentID && reg.Status == models.RegistrationConfirmed {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRegistrationRepo) ListByIDs(_ context.Context, _ repositories.SQLExecutor, ids []int) ([]models.Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Registration, 0, len(ids))
	for _, id := range ids {
		if reg, ok := r.regs[id]; ok {
			out = append(out, reg)
		}
	}
	return out, nil
}

func (r *fakeRegistrationRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.RegistrationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.Status = status
	r.regs[id] = reg
	return nil
}

func (r *fakeRegistrationRepo) CountConfirmed(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	regs, err := r.ListConfirmedByTournament(ctx, exec, tournamentID)
	if err != nil {
		return 0, err
	}
	return len(regs), nil
}

type fakeGroupRepo struct {
	mu      sync.Mutex
	nextID  int
	groups  map[int]*models.Group
	members map[int][]int // groupID -> registration IDs
	regs    *fakeRegistrationRepo
}

func newFakeGroupRepo(regs *fakeRegistrationRepo) *fakeGroupRepo {
	return &fakeGroupRepo{nextID: 1, groups: map[int]*models.Group{}, members: map[int][]int{}, regs: regs}
}

func (r *fakeGroupRepo) Create(_ context.Context, _ repositories.SQLExecutor, group *models.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	group.ID = r.nextID
	r.nextID++
	stored := *group
	r.groups[group.ID] = &stored
	return nil
}

func (r *fakeGroupRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, repositories.ErrGroupNotFound
	}
	c := *g
	return &c, nil
}

func (r *fakeGroupRepo) ExistsForRound(_ context.Context, _ repositories.SQLExecutor, tournamentID, roundNumber int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.groups {
		if g.TournamentID == tournamentID && g.RoundNumber == roundNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeGroupRepo) ListByRound(_ context.Context, _ repositories.SQLExecutor, tournamentID, roundNumber int) ([]*models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Group
	for _, g := range r.groups {
		if g.TournamentID == tournamentID && g.RoundNumber == roundNumber {
			c := *g
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeGroupRepo) AddTeams(_ context.Context, _ repositories.SQLExecutor, groupID int, registrationIDs []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[groupID] = append(r.members[groupID], registrationIDs...)
	return nil
}

func (r *fakeGroupRepo) ListTeams(ctx context.Context, exec repositories.SQLExecutor, groupID int) ([]models.Registration, error) {
	r.mu.Lock()
	ids := append([]int{}, r.members[groupID]...)
	r.mu.Unlock()
	return r.regs.ListByIDs(ctx, exec, ids)
}

func (r *fakeGroupRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.GroupStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return repositories.ErrGroupNotFound
	}
	g.Status = status
	return nil
}

func (r *fakeGroupRepo) SetWinner(_ context.Context, _ repositories.SQLExecutor, id int, winnerID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return repositories.ErrGroupNotFound
	}
	g.WinnerID = &winnerID
	return nil
}

func (r *fakeGroupRepo) CountIncompleteByRound(_ context.Context, _ repositories.SQLExecutor, tournamentID, roundNumber int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, g := range r.groups {
		if g.TournamentID == tournamentID && g.RoundNumber == roundNumber && g.Status != models.GroupCompleted {
			count++
		}
	}
	return count, nil
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	nextID  int
	matches map[int]*models.Match
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{nextID: 1, matches: map[int]*models.Match{}}
}

func (r *fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.matches {
		if m.GroupID == match.GroupID && m.MatchNumber == match.MatchNumber {
			return repositories.ErrMatchNumberConflict
		}
	}
	match.ID = r.nextID
	r.nextID++
	stored := *match
	r.matches[match.ID] = &stored
	return nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	c := *m
	return &c, nil
}

func (r *fakeMatchRepo) GetByGroupAndNumber(_ context.Context, _ repositories.SQLExecutor, groupID, matchNumber int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.matches {
		if m.GroupID == groupID && m.MatchNumber == matchNumber {
			c := *m
			return &c, nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (r *fakeMatchRepo) ListByGroup(_ context.Context, _ repositories.SQLExecutor, groupID int) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Match
	for _, m := range r.matches {
		if m.GroupID == groupID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchNumber < out[j].MatchNumber })
	return out, nil
}

func (r *fakeMatchRepo) UpdateRoomDetails(_ context.Context, _ repositories.SQLExecutor, id int, roomID, roomSecret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.RoomID = roomID
	m.RoomSecret = roomSecret
	return nil
}

func (r *fakeMatchRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.MatchStatus, startedAt, endedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Status = status
	if startedAt != nil {
		m.StartedAt = startedAt
	}
	if endedAt != nil {
		m.EndedAt = endedAt
	}
	return nil
}

func (r *fakeMatchRepo) ResetToWaiting(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Status = models.MatchWaiting
	m.StartedAt = nil
	return nil
}

func (r *fakeMatchRepo) SetWinner(_ context.Context, _ repositories.SQLExecutor, id int, winnerID *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.WinnerID = winnerID
	return nil
}

func (r *fakeMatchRepo) CountIncompleteByGroup(_ context.Context, _ repositories.SQLExecutor, groupID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.matches {
		if m.GroupID == groupID && m.Status != models.MatchCompleted {
			count++
		}
	}
	return count, nil
}

type fakeScoreRepo struct {
	mu      sync.Mutex
	nextID  int
	scores  map[int]models.MatchScore
	groupOf map[int]int // matchID -> groupID
	roundOf map[int]int // groupID -> roundNumber
	tournOf map[int]int // groupID -> tournamentID
}

func newFakeScoreRepo() *fakeScoreRepo {
	return &fakeScoreRepo{
		nextID:  1,
		scores:  map[int]models.MatchScore{},
		groupOf: map[int]int{},
		roundOf: map[int]int{},
		tournOf: map[int]int{},
	}
}

// registerMatch привязывает матч к группе и раунду, чтобы работали выборки
// по группе, раунду и турниру.
func (r *fakeScoreRepo) registerMatch(matchID, groupID, roundNumber, tournamentID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groupOf[matchID] = groupID
	r.roundOf[groupID] = roundNumber
	r.tournOf[groupID] = tournamentID
}

func (r *fakeScoreRepo) Upsert(_ context.Context, _ repositories.SQLExecutor, score *models.MatchScore) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.scores {
		if s.MatchID == score.MatchID && s.RegistrationID == score.RegistrationID {
			score.ID = id
			r.scores[id] = *score
			return nil
		}
	}
	score.ID = r.nextID
	r.nextID++
	r.scores[score.ID] = *score
	return nil
}

func (r *fakeScoreRepo) ListByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int) ([]models.MatchScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.MatchScore
	for _, s := range r.scores {
		if s.MatchID == matchID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeScoreRepo) ListByGroup(_ context.Context, _ repositories.SQLExecutor, groupID int) ([]models.MatchScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.MatchScore
	for _, s := range r.scores {
		if r.groupOf[s.MatchID] == groupID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeScoreRepo) ListByRound(_ context.Context, _ repositories.SQLExecutor, tournamentID, roundNumber int) ([]models.MatchScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.MatchScore
	for _, s := range r.scores {
		gid := r.groupOf[s.MatchID]
		if r.tournOf[gid] == tournamentID && r.roundOf[gid] == roundNumber {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeScoreRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]models.MatchScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.MatchScore
	for _, s := range r.scores {
		if r.tournOf[r.groupOf[s.MatchID]] == tournamentID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeScoreRepo) CountByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) (int, error) {
	scores, err := r.ListByMatch(ctx, exec, matchID)
	if err != nil {
		return 0, err
	}
	return len(scores), nil
}

func (r *fakeScoreRepo) RecomputeRoundScores(_ context.Context, _ repositories.SQLExecutor, _, _ int) error {
	return nil
}

func (r *fakeScoreRepo) ListRoundScores(_ context.Context, _ repositories.SQLExecutor, _, _ int) ([]models.RoundScore, error) {
	return nil, nil
}

type fakeStatisticsRepo struct {
	mu    sync.Mutex
	stats []*models.TeamStatistics
}

func (r *fakeStatisticsRepo) ReplaceAll(_ context.Context, _ repositories.SQLExecutor, stats []*models.TeamStatistics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = append([]*models.TeamStatistics{}, stats...)
	return nil
}

func (r *fakeStatisticsRepo) List(_ context.Context, _ repositories.SQLExecutor, limit, offset int) ([]*models.TeamStatistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sorted := append([]*models.TeamStatistics{}, r.stats...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })
	if offset >= len(sorted) {
		return nil, nil
	}
	sorted = sorted[offset:]
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (r *fakeStatisticsRepo) GetByTeamID(_ context.Context, _ repositories.SQLExecutor, teamID int) (*models.TeamStatistics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, st := range r.stats {
		if st.TeamID == teamID {
			return st, nil
		}
	}
	return nil, repositories.ErrStatisticsNotFound
}

func (r *fakeStatisticsRepo) Count(_ context.Context, _ repositories.SQLExecutor) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stats), nil
}

// fakeRebuilder считает вызовы пересборки лидерборда.
type fakeRebuilder struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRebuilder) RebuildAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeRebuilder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
