package config

import "time"

// AdmissionConfig carries the engine tunables.  Every value has a default
// so a bare environment runs with the stock waiting-room behaviour: fifty
// admitted at a time, three minutes per batch, five-minute queue entries
// and holds, a two-second sweep.
type AdmissionConfig struct {
    QueueEntryTTL   time.Duration
    BatchSize       int
    MinutesPerBatch int
    HoldTTL         time.Duration
    SweepInterval   time.Duration
    SeatsPerDate    int
    SeatIDPrefix    string
    SnapshotEnabled bool
    SeedCurrentWeek bool
}

func LoadAdmissionConfig() AdmissionConfig {
    c := AdmissionConfig{
        QueueEntryTTL:   envDur("QUEUE_ENTRY_TTL", 5*time.Minute),
        BatchSize:       envInt("QUEUE_BATCH_SIZE", 50),
        MinutesPerBatch: envInt("QUEUE_MINUTES_PER_BATCH", 3),
        HoldTTL:         envDur("HOLD_TTL", 5*time.Minute),
        SweepInterval:   envDur("SWEEP_INTERVAL", 2*time.Second),
        SeatsPerDate:    envInt("SEATS_PER_DATE", 50),
        SeatIDPrefix:    envStr("SEAT_ID_PREFIX", "S"),
        SnapshotEnabled: envBool("SNAPSHOT_ENABLED", true),
        SeedCurrentWeek: envBool("SEED_CURRENT_WEEK", true),
    }
    if c.QueueEntryTTL <= 0 { c.QueueEntryTTL = 5 * time.Minute }
    if c.BatchSize < 1 { c.BatchSize = 1 }
    if c.MinutesPerBatch < 0 { c.MinutesPerBatch = 0 }
    if c.HoldTTL <= 0 { c.HoldTTL = 5 * time.Minute }
    if c.SweepInterval <= 0 { c.SweepInterval = 2 * time.Second }
    if c.SeatsPerDate < 1 { c.SeatsPerDate = 50 }
    return c
}
