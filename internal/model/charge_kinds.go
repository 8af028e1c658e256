package model

// ChargeKind identifies which clinical event kind caused a charge line.
type ChargeKind struct {
	Name  string // e.g. "treatment"
	Table string // source table, e.g. "treatments"
}

// AllChargeKinds lists the billable event kinds in canonical order.
var AllChargeKinds = []ChargeKind{
	{Name: "treatment", Table: "treatments"},
	{Name: "medication", Table: "prescription_items"},
	{Name: "lab_test", Table: "lab_tests"},
}

// ChargeKindNames returns just the kind names in canonical order.
func ChargeKindNames() []string {
	names := make([]string, len(AllChargeKinds))
	for i, k := range AllChargeKinds {
		names[i] = k.Name
	}
	return names
}

// ChargeKindByName returns the ChargeKind for the given name, or ok=false.
func ChargeKindByName(name string) (ChargeKind, bool) {
	for _, k := range AllChargeKinds {
		if k.Name == name {
			return k, true
		}
	}
	return ChargeKind{}, false
}
