package tuple

import "fmt"

// PageID names one page of one table. It is a comparable value so it can key
// the buffer pool cache and the lock table directly, and it is stable across
// restarts.
type PageID struct {
	TableID int
	PageNo  int
}

func (p PageID) String() string {
	return fmt.Sprintf("%d.%d", p.TableID, p.PageNo)
}

// RecordID names one tuple slot inside a page.
type RecordID struct {
	PID    PageID
	SlotNo int
}

func (r RecordID) String() string {
	return fmt.Sprintf("%v:%d", r.PID, r.SlotNo)
}
