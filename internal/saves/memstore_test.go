package saves_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/neexbeast/tether/internal/saved"
)

type saveKey struct {
	userID     string
	kind       saved.Kind
	resourceID string
}

type memState struct {
	segments   map[string]saved.Segment
	flights    map[string]saved.Flight
	assoc      map[string][]saved.SegmentRef
	activities map[string]saved.Activity
	saves      map[saveKey]int
	users      map[string]saved.User
	seq        int
}

func newMemState() *memState {
	return &memState{
		segments:   map[string]saved.Segment{},
		flights:    map[string]saved.Flight{},
		assoc:      map[string][]saved.SegmentRef{},
		activities: map[string]saved.Activity{},
		saves:      map[saveKey]int{},
		users:      map[string]saved.User{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.segments {
		c.segments[k] = v
	}
	for k, v := range s.flights {
		c.flights[k] = v
	}
	for k, v := range s.assoc {
		c.assoc[k] = append([]saved.SegmentRef(nil), v...)
	}
	for k, v := range s.activities {
		c.activities[k] = v
	}
	for k, v := range s.saves {
		c.saves[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	c.seq = s.seq
	return c
}

// memDB is an in-memory saved.Transactor. Transactions are serialized and
// run against a copy of the state that only replaces the committed state
// when fn returns nil.
type memDB struct {
	mu      sync.Mutex
	state   *memState
	txCount int

	// hook runs before every store call; a non-nil error is returned from it.
	hook func(op string) error

	// upserts lists segment ids in the order they were upserted, across
	// committed and rolled back transactions.
	upserts []string
}

// testUsers are registered in every new memDB.
var testUsers = []string{"u1", "u2", "u3", "u4"}

func newMemDB() *memDB {
	st := newMemState()
	for _, id := range testUsers {
		st.users[id] = saved.User{ID: id}
	}
	return &memDB{state: st}
}

func (db *memDB) InTx(ctx context.Context, fn func(ctx context.Context, s saved.Stores) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.txCount++
	work := db.state.clone()
	if err := fn(ctx, &memTx{db: db, st: work}); err != nil {
		return err
	}
	db.state = work
	return nil
}

func (db *memDB) snapshot() *memState {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.clone()
}

type memTx struct {
	db *memDB
	st *memState
}

func (t *memTx) check(op string) error {
	if t.db.hook == nil {
		return nil
	}
	return t.db.hook(op)
}

func (t *memTx) Segments() saved.SegmentStore    { return memSegments{t} }
func (t *memTx) Flights() saved.FlightStore      { return memFlights{t} }
func (t *memTx) Activities() saved.ActivityStore { return memActivities{t} }
func (t *memTx) Saves() saved.SaveIndex          { return memSaves{t} }
func (t *memTx) Users() saved.UserStore          { return memUsers{t} }

type memSegments struct{ *memTx }

func (m memSegments) UpsertOrIncrement(_ context.Context, seg saved.Segment) (string, error) {
	if err := m.check("segments.UpsertOrIncrement"); err != nil {
		return "", err
	}
	m.db.upserts = append(m.db.upserts, seg.ID)
	if existing, ok := m.st.segments[seg.ID]; ok {
		existing.RefCount++
		m.st.segments[seg.ID] = existing
		return seg.ID, nil
	}
	seg.RefCount = 1
	m.st.segments[seg.ID] = seg
	return seg.ID, nil
}

func (m memSegments) DecrementAndMaybeDelete(_ context.Context, segmentID string) (bool, error) {
	if err := m.check("segments.DecrementAndMaybeDelete"); err != nil {
		return false, err
	}
	seg, ok := m.st.segments[segmentID]
	if !ok {
		return false, fmt.Errorf("decrementing segment %s: %w", segmentID, saved.ErrNotFound)
	}
	seg.RefCount = max(seg.RefCount-1, 0)
	if seg.RefCount > 0 {
		m.st.segments[segmentID] = seg
		return false, nil
	}
	for flightID, refs := range m.st.assoc {
		for _, ref := range refs {
			if ref.SegmentID == segmentID {
				return false, fmt.Errorf("segment %s still referenced by flight %s", segmentID, flightID)
			}
		}
	}
	delete(m.st.segments, segmentID)
	return true, nil
}

func (m memSegments) Get(_ context.Context, segmentID string) (*saved.Segment, error) {
	if err := m.check("segments.Get"); err != nil {
		return nil, err
	}
	seg, ok := m.st.segments[segmentID]
	if !ok {
		return nil, nil
	}
	return &seg, nil
}

type memFlights struct{ *memTx }

func (m memFlights) GetOrCreate(_ context.Context, f saved.Flight) (saved.Flight, bool, error) {
	if err := m.check("flights.GetOrCreate"); err != nil {
		return saved.Flight{}, false, err
	}
	if existing, ok := m.st.flights[f.ID]; ok {
		return existing, false, nil
	}
	f.RefCount = 1
	m.st.flights[f.ID] = f
	return f, true, nil
}

func (m memFlights) Increment(_ context.Context, flightID string) error {
	if err := m.check("flights.Increment"); err != nil {
		return err
	}
	f, ok := m.st.flights[flightID]
	if !ok {
		return fmt.Errorf("incrementing flight %s: %w", flightID, saved.ErrNotFound)
	}
	f.RefCount++
	m.st.flights[flightID] = f
	return nil
}

func (m memFlights) Decrement(_ context.Context, flightID string) (int, error) {
	if err := m.check("flights.Decrement"); err != nil {
		return 0, err
	}
	f, ok := m.st.flights[flightID]
	if !ok {
		return 0, fmt.Errorf("decrementing flight %s: %w", flightID, saved.ErrNotFound)
	}
	f.RefCount = max(f.RefCount-1, 0)
	m.st.flights[flightID] = f
	return f.RefCount, nil
}

func (m memFlights) Delete(_ context.Context, flightID string) error {
	if err := m.check("flights.Delete"); err != nil {
		return err
	}
	delete(m.st.flights, flightID)
	delete(m.st.assoc, flightID)
	return nil
}

func (m memFlights) SetSegments(_ context.Context, flightID string, refs []saved.SegmentRef) error {
	if err := m.check("flights.SetSegments"); err != nil {
		return err
	}
	for _, ref := range refs {
		if _, ok := m.st.segments[ref.SegmentID]; !ok {
			return fmt.Errorf("flight %s references missing segment %s", flightID, ref.SegmentID)
		}
	}
	m.st.assoc[flightID] = append(m.st.assoc[flightID], refs...)
	return nil
}

func (m memFlights) SegmentIDs(_ context.Context, flightID string) ([]string, error) {
	if err := m.check("flights.SegmentIDs"); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var ids []string
	for _, ref := range m.st.assoc[flightID] {
		if !seen[ref.SegmentID] {
			seen[ref.SegmentID] = true
			ids = append(ids, ref.SegmentID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m memFlights) DeleteSegments(_ context.Context, flightID string) error {
	if err := m.check("flights.DeleteSegments"); err != nil {
		return err
	}
	delete(m.st.assoc, flightID)
	return nil
}

func (m memFlights) GetWithSegments(_ context.Context, flightID string) (*saved.FlightView, error) {
	if err := m.check("flights.GetWithSegments"); err != nil {
		return nil, err
	}
	f, ok := m.st.flights[flightID]
	if !ok {
		return nil, nil
	}

	refs := append([]saved.SegmentRef(nil), m.st.assoc[flightID]...)
	sort.Slice(refs, func(i, j int) bool { return refs[i].Position < refs[j].Position })

	view := &saved.FlightView{Flight: f, Outbound: []saved.Segment{}, Inbound: []saved.Segment{}}
	for _, ref := range refs {
		seg, ok := m.st.segments[ref.SegmentID]
		if !ok {
			return nil, fmt.Errorf("segment %s missing: %w", ref.SegmentID, saved.ErrDataIntegrity)
		}
		if ref.Bound == saved.BoundOutbound {
			view.Outbound = append(view.Outbound, seg)
		} else {
			view.Inbound = append(view.Inbound, seg)
		}
	}
	return view, nil
}

type memActivities struct{ *memTx }

func (m memActivities) GetOrCreate(_ context.Context, a saved.Activity) (saved.Activity, bool, error) {
	if err := m.check("activities.GetOrCreate"); err != nil {
		return saved.Activity{}, false, err
	}
	if existing, ok := m.st.activities[a.ID]; ok {
		return existing, false, nil
	}
	a.RefCount = 1
	m.st.activities[a.ID] = a
	return a, true, nil
}

func (m memActivities) Increment(_ context.Context, activityID string) error {
	if err := m.check("activities.Increment"); err != nil {
		return err
	}
	a, ok := m.st.activities[activityID]
	if !ok {
		return fmt.Errorf("incrementing activity %s: %w", activityID, saved.ErrNotFound)
	}
	a.RefCount++
	m.st.activities[activityID] = a
	return nil
}

func (m memActivities) Decrement(_ context.Context, activityID string) (int, error) {
	if err := m.check("activities.Decrement"); err != nil {
		return 0, err
	}
	a, ok := m.st.activities[activityID]
	if !ok {
		return 0, fmt.Errorf("decrementing activity %s: %w", activityID, saved.ErrNotFound)
	}
	a.RefCount = max(a.RefCount-1, 0)
	m.st.activities[activityID] = a
	return a.RefCount, nil
}

func (m memActivities) Delete(_ context.Context, activityID string) error {
	if err := m.check("activities.Delete"); err != nil {
		return err
	}
	delete(m.st.activities, activityID)
	return nil
}

func (m memActivities) Get(_ context.Context, activityID string) (*saved.Activity, error) {
	if err := m.check("activities.Get"); err != nil {
		return nil, err
	}
	a, ok := m.st.activities[activityID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

type memSaves struct{ *memTx }

func (m memSaves) Exists(_ context.Context, userID string, kind saved.Kind, resourceID string) (bool, error) {
	if err := m.check("saves.Exists"); err != nil {
		return false, err
	}
	_, ok := m.st.saves[saveKey{userID, kind, resourceID}]
	return ok, nil
}

func (m memSaves) Insert(_ context.Context, userID string, kind saved.Kind, resourceID string) error {
	if err := m.check("saves.Insert"); err != nil {
		return err
	}
	k := saveKey{userID, kind, resourceID}
	if _, ok := m.st.saves[k]; ok {
		return fmt.Errorf("saving %s %s for user %s: %w", kind, resourceID, userID, saved.ErrDuplicateSave)
	}
	if _, ok := m.st.users[userID]; !ok {
		return fmt.Errorf("saving %s %s for user %s: %w", kind, resourceID, userID, saved.ErrUnknownUser)
	}
	m.st.seq++
	m.st.saves[k] = m.st.seq
	return nil
}

func (m memSaves) Delete(_ context.Context, userID string, kind saved.Kind, resourceID string) (bool, error) {
	if err := m.check("saves.Delete"); err != nil {
		return false, err
	}
	k := saveKey{userID, kind, resourceID}
	_, ok := m.st.saves[k]
	delete(m.st.saves, k)
	return ok, nil
}

func (m memSaves) List(_ context.Context, userID string, kind saved.Kind) ([]saved.SavedResource, error) {
	if err := m.check("saves.List"); err != nil {
		return nil, err
	}
	type entry struct {
		id  string
		seq int
	}
	var entries []entry
	for k, seq := range m.st.saves {
		if k.userID == userID && k.kind == kind {
			entries = append(entries, entry{k.resourceID, seq})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]saved.SavedResource, len(entries))
	for i, e := range entries {
		out[i] = saved.SavedResource{
			UserID:     userID,
			Kind:       kind,
			ResourceID: e.id,
			SavedAt:    time.Unix(int64(e.seq), 0).UTC(),
		}
	}
	return out, nil
}

type memUsers struct{ *memTx }

func (m memUsers) Create(_ context.Context, u saved.User) (saved.User, error) {
	if err := m.check("users.Create"); err != nil {
		return saved.User{}, err
	}
	if _, ok := m.st.users[u.ID]; ok {
		return saved.User{}, fmt.Errorf("creating user %s: %w", u.ID, saved.ErrUserExists)
	}
	m.st.seq++
	u.CreatedAt = time.Unix(int64(m.st.seq), 0).UTC()
	m.st.users[u.ID] = u
	return u, nil
}

func (m memUsers) Get(_ context.Context, userID string) (*saved.User, error) {
	if err := m.check("users.Get"); err != nil {
		return nil, err
	}
	u, ok := m.st.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}
