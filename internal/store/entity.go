package store

import (
	"time"

	"gridpulse/internal/domain/model"
)

// LoadSampleEntity is the persistence schema model for one grid-load observation.
type LoadSampleEntity struct {
	IntervalStartUTC time.Time `gorm:"column:interval_start_utc;primaryKey"`
	IntervalEndUTC   time.Time `gorm:"column:interval_end_utc;index;not null"`
	LoadMW           float64   `gorm:"column:load_mw;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (LoadSampleEntity) TableName() string { return "load_samples" }

// ReactorStatusEntity is the persistence schema model for one reactor status report.
type ReactorStatusEntity struct {
	ReportDate time.Time `gorm:"column:report_date;primaryKey"`
	UnitName   string    `gorm:"column:unit_name;primaryKey"`
	PowerPct   float64   `gorm:"column:power_pct;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ReactorStatusEntity) TableName() string { return "reactor_status_samples" }

// CapacityEntity is the persistence schema model for one generator's seasonal capacity.
type CapacityEntity struct {
	Period              string    `gorm:"column:period;primaryKey"`
	PlantID             string    `gorm:"column:plant_id;primaryKey"`
	GeneratorID         string    `gorm:"column:generator_id;primaryKey"`
	NetSummerCapacityMW float64   `gorm:"column:net_summer_capacity_mw;not null"`
	NetWinterCapacityMW float64   `gorm:"column:net_winter_capacity_mw;not null"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (CapacityEntity) TableName() string { return "capacity_samples" }

func fromDomainLoad(s model.LoadSample) LoadSampleEntity {
	return LoadSampleEntity{
		IntervalStartUTC: s.IntervalStartUTC.UTC(),
		IntervalEndUTC:   s.IntervalEndUTC.UTC(),
		LoadMW:           s.LoadMW,
	}
}

func toDomainLoad(e LoadSampleEntity) model.LoadSample {
	return model.LoadSample{
		IntervalStartUTC: e.IntervalStartUTC.UTC(),
		IntervalEndUTC:   e.IntervalEndUTC.UTC(),
		LoadMW:           e.LoadMW,
	}
}

func fromDomainReactorStatus(s model.ReactorStatusSample) ReactorStatusEntity {
	return ReactorStatusEntity{
		ReportDate: s.ReportDate.UTC(),
		UnitName:   s.UnitName,
		PowerPct:   s.PowerPct,
	}
}

func toDomainReactorStatus(e ReactorStatusEntity) model.ReactorStatusSample {
	return model.ReactorStatusSample{
		ReportDate: e.ReportDate.UTC(),
		UnitName:   e.UnitName,
		PowerPct:   e.PowerPct,
	}
}

func fromDomainCapacity(s model.CapacitySample) CapacityEntity {
	return CapacityEntity{
		Period:              s.Period,
		PlantID:             s.PlantID,
		GeneratorID:         s.GeneratorID,
		NetSummerCapacityMW: s.NetSummerCapacityMW,
		NetWinterCapacityMW: s.NetWinterCapacityMW,
	}
}

func toDomainCapacity(e CapacityEntity) model.CapacitySample {
	return model.CapacitySample{
		Period:              e.Period,
		PlantID:             e.PlantID,
		GeneratorID:         e.GeneratorID,
		NetSummerCapacityMW: e.NetSummerCapacityMW,
		NetWinterCapacityMW: e.NetWinterCapacityMW,
	}
}
