package services

import (
	"github.com/fyrsmithlabs/dispatchd/internal/dispatch"
)

// DefaultServiceName labels a registry's default service in listings.
const DefaultServiceName = "<default>"

// RegistryInfo lists the services of one registry.
type RegistryInfo struct {
	Name     string        `json:"name" yaml:"name"`
	Services []ServiceInfo `json:"services" yaml:"services"`
}

// ServiceInfo describes one service's parameters.
type ServiceInfo struct {
	Name     string      `json:"name" yaml:"name"`
	Required []string    `json:"required,omitempty" yaml:"required,omitempty"`
	Optional []ParamInfo `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// ParamInfo is an optional parameter and its default.
type ParamInfo struct {
	Name    string `json:"name" yaml:"name"`
	Default any    `json:"default" yaml:"default"`
}

// Describe lists every registry in processing order, services sorted by
// name with the default service last.
func (c *Catalog) Describe() []RegistryInfo {
	return DescribeStages(c.Stages())
}

// DescribeStages lists the services of arbitrary stages.
func DescribeStages(stages []dispatch.Stage) []RegistryInfo {
	out := make([]RegistryInfo, 0, len(stages))
	for _, st := range stages {
		info := RegistryInfo{Name: st.Name}
		for _, name := range st.Registry.Names() {
			if svc, ok := st.Registry.Lookup(name); ok {
				info.Services = append(info.Services, describeService(name, svc))
			}
		}
		info.Services = append(info.Services, describeService(DefaultServiceName, st.Registry.Default()))
		out = append(out, info)
	}
	return out
}

func describeService(name string, svc *dispatch.Service) ServiceInfo {
	info := ServiceInfo{Name: name, Required: svc.Required()}
	for _, p := range svc.Params() {
		if p.Optional {
			info.Optional = append(info.Optional, ParamInfo{Name: p.Name, Default: p.Default})
		}
	}
	if len(info.Required) == 0 {
		info.Required = nil
	}
	return info
}
