package picker

// Selection is the outcome of a list. A nil Item means the list was
// dismissed without a choice.
type Selection struct {
	Item *Item
}

// Surface is where pick-lists, progress and errors are shown.
type Surface interface {
	// OpenList shows a single-select list. busy shows a loading indicator.
	OpenList(placeholder string, items []Item, busy bool) List
	// ShowProgress shows an indeterminate progress indicator until Done.
	ShowProgress(title string) Progress
	// ShowError shows a non-blocking error message.
	ShowError(msg string)
}

// List is an open pick-list.
type List interface {
	SetItems(items []Item)
	SetBusy(busy bool)
	// Done delivers exactly one Selection when the user accepts or
	// dismisses the list.
	Done() <-chan Selection
	// Close hides the list. Closing an unresolved list dismisses it.
	Close()
}

// Progress is an open progress indicator.
type Progress interface {
	Report(msg string)
	Done()
}
