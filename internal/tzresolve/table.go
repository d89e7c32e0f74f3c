package tzresolve

// Entry — одна строка таблицы: название страны (или синоним) в нижнем регистре и IANA-зона.
type Entry struct {
	Country  string
	Timezone string
}

// Table — упорядоченная таблица; побеждает первое совпадение, поэтому порядок важен.
type Table struct {
	entries []Entry
}

// NewTable копирует записи; после создания таблица не меняется.
func NewTable(entries []Entry) *Table {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Table{entries: cp}
}

func (t *Table) Len() int { return len(t.entries) }

// Entries возвращает копию записей в порядке поиска.
func (t *Table) Entries() []Entry {
	cp := make([]Entry, len(t.entries))
	copy(cp, t.entries)
	return cp
}

// DefaultTable — упрощённый список распространённых стран.
func DefaultTable() *Table {
	return NewTable([]Entry{
		{"usa", "America/New_York"},
		{"united states", "America/New_York"},
		{"us", "America/New_York"},
		{"america", "America/New_York"},
		{"uk", "Europe/London"},
		{"united kingdom", "Europe/London"},
		{"england", "Europe/London"},
		{"britain", "Europe/London"},
		{"canada", "America/Toronto"},
		{"australia", "Australia/Sydney"},
		{"germany", "Europe/Berlin"},
		{"france", "Europe/Paris"},
		{"spain", "Europe/Madrid"},
		{"italy", "Europe/Rome"},
		{"netherlands", "Europe/Amsterdam"},
		{"sweden", "Europe/Stockholm"},
		{"norway", "Europe/Oslo"},
		{"denmark", "Europe/Copenhagen"},
		{"finland", "Europe/Helsinki"},
		{"poland", "Europe/Warsaw"},
		{"russia", "Europe/Moscow"},
		{"turkey", "Europe/Istanbul"},
		{"japan", "Asia/Tokyo"},
		{"china", "Asia/Shanghai"},
		{"india", "Asia/Kolkata"},
		{"south korea", "Asia/Seoul"},
		{"korea", "Asia/Seoul"},
		{"singapore", "Asia/Singapore"},
		{"thailand", "Asia/Bangkok"},
		{"philippines", "Asia/Manila"},
		{"indonesia", "Asia/Jakarta"},
		{"malaysia", "Asia/Kuala_Lumpur"},
		{"vietnam", "Asia/Ho_Chi_Minh"},
		{"brazil", "America/Sao_Paulo"},
		{"mexico", "America/Mexico_City"},
		{"argentina", "America/Buenos_Aires"},
		{"chile", "America/Santiago"},
		{"colombia", "America/Bogota"},
		{"peru", "America/Lima"},
		{"south africa", "Africa/Johannesburg"},
		{"egypt", "Africa/Cairo"},
		{"nigeria", "Africa/Lagos"},
		{"israel", "Asia/Jerusalem"},
		{"saudi arabia", "Asia/Riyadh"},
		{"uae", "Asia/Dubai"},
		{"emirates", "Asia/Dubai"},
		{"dubai", "Asia/Dubai"},
		{"new zealand", "Pacific/Auckland"},
		{"serbia", "Europe/Belgrade"},
	})
}
