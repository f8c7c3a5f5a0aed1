package changesource

// Filter selects change sources for a directory listing.
//
// The set of variants is closed: ByID, ByOwner, ByActive, All and Empty.
type Filter interface {
	isFilter()
}

// ByID selects at most the one change source with the given ID.
type ByID struct {
	ID ID
}

// ByOwner selects every change source currently owned by Master.
type ByOwner struct {
	Master MasterID
}

// ByActive selects owned change sources when Active is true, unowned ones otherwise.
type ByActive struct {
	Active bool
}

// All selects every change source.
type All struct{}

// Empty selects nothing. Listing it never touches the store.
type Empty struct{}

func (ByID) isFilter()     {}
func (ByOwner) isFilter()  {}
func (ByActive) isFilter() {}
func (All) isFilter()      {}
func (Empty) isFilter()    {}

// NewFilter folds optional criteria into a single Filter variant.
//
// An id takes precedence over everything else. An owner combined with
// active=false can never match (owned sources are active) and yields Empty.
// An owner combined with active=true is the same as the owner alone.
func NewFilter(id *ID, owner *MasterID, active *bool) Filter {
	switch {
	case id != nil:
		return ByID{ID: *id}
	case owner != nil && active != nil && !*active:
		return Empty{}
	case owner != nil:
		return ByOwner{Master: *owner}
	case active != nil:
		return ByActive{Active: *active}
	default:
		return All{}
	}
}
