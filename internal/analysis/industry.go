// Package analysis hosts the conflict and impact analysis agent: a
// deterministic structural conflict detector over the rule collection,
// model-backed conflict narrative and business impact assessment, the
// orchestration gate deciding whether rule generation may proceed, and
// the conversational response surface. Industry context comes from a
// built-in configuration table so the same detector adapts its impact
// phrasing across verticals.
package analysis

import "sort"

// IndustryConfig parameterizes analysis for one vertical.
type IndustryConfig struct {
	Name            string   `json:"name"`
	KeyParameters   []string `json:"key_parameters"`
	CommonConflicts []string `json:"common_conflicts"`
	ImpactAreas     []string `json:"impact_areas"`
}

// DefaultIndustry is used when the caller supplies no industry or an
// unknown one.
const DefaultIndustry = "generic"

var industryConfigs = map[string]IndustryConfig{
	"restaurant": {
		Name:            "restaurant",
		KeyParameters:   []string{"staffing_levels", "operating_hours", "peak_times", "food_safety", "customer_volume"},
		CommonConflicts: []string{"scheduling_overlap", "resource_allocation", "compliance_violations"},
		ImpactAreas:     []string{"customer_service", "cost_efficiency", "staff_satisfaction", "compliance"},
	},
	"retail": {
		Name:            "retail",
		KeyParameters:   []string{"inventory_levels", "store_hours", "seasonal_demand", "pricing_strategy", "staff_coverage"},
		CommonConflicts: []string{"pricing_rules", "inventory_management", "promotional_overlaps"},
		ImpactAreas:     []string{"sales_performance", "inventory_turnover", "customer_satisfaction", "profit_margins"},
	},
	"manufacturing": {
		Name:            "manufacturing",
		KeyParameters:   []string{"production_capacity", "quality_standards", "maintenance_schedules", "safety_protocols"},
		CommonConflicts: []string{"production_scheduling", "quality_vs_speed", "resource_allocation"},
		ImpactAreas:     []string{"production_efficiency", "quality_metrics", "safety_compliance", "cost_control"},
	},
	"healthcare": {
		Name:            "healthcare",
		KeyParameters:   []string{"patient_capacity", "staff_credentials", "treatment_protocols", "regulatory_compliance"},
		CommonConflicts: []string{"scheduling_conflicts", "protocol_inconsistencies", "resource_limitations"},
		ImpactAreas:     []string{"patient_care", "safety_compliance", "operational_efficiency", "regulatory_adherence"},
	},
	DefaultIndustry: {
		Name:            DefaultIndustry,
		KeyParameters:   []string{"operational_hours", "resource_allocation", "compliance_requirements", "performance_metrics"},
		CommonConflicts: []string{"resource_conflicts", "policy_inconsistencies", "scheduling_overlaps"},
		ImpactAreas:     []string{"operational_efficiency", "compliance", "cost_effectiveness", "performance"},
	},
}

// LookupIndustry returns the configuration for the named industry,
// falling back to the generic one for unknown names.
func LookupIndustry(name string) IndustryConfig {
	if config, ok := industryConfigs[name]; ok {
		return config
	}
	return industryConfigs[DefaultIndustry]
}

// Industries lists the configured industry names in stable order.
func Industries() []string {
	names := make([]string, 0, len(industryConfigs))
	for name := range industryConfigs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
