package goal

type GoalType string

const (
	TypeQuarterly GoalType = "quarterly"
	TypeMonthly   GoalType = "monthly"
	TypeWeekly    GoalType = "weekly"
	TypeDaily     GoalType = "daily"
)

// AllTypes is ordered from the coarsest level to the finest.
var AllTypes = []GoalType{
	TypeQuarterly,
	TypeMonthly,
	TypeWeekly,
	TypeDaily,
}

func (t GoalType) IsValid() bool {
	for _, v := range AllTypes {
		if t == v {
			return true
		}
	}
	return false
}

func (t GoalType) level() int {
	for i, v := range AllTypes {
		if t == v {
			return i
		}
	}
	return -1
}

// ParentType is the level a parent of t must have. Quarterly goals have none.
func (t GoalType) ParentType() (GoalType, bool) {
	l := t.level()
	if l <= 0 {
		return "", false
	}
	return AllTypes[l-1], true
}

func (t GoalType) ChildType() (GoalType, bool) {
	l := t.level()
	if l < 0 || l == len(AllTypes)-1 {
		return "", false
	}
	return AllTypes[l+1], true
}

type Category string

const (
	CategoryProfessional Category = "professional"
	CategoryPersonal     Category = "personal"
)

var AllCategories = []Category{
	CategoryProfessional,
	CategoryPersonal,
}

func (c Category) IsValid() bool {
	for _, v := range AllCategories {
		if c == v {
			return true
		}
	}
	return false
}
