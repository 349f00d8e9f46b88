package testutil

import "slices"

// JobList is an in-memory job table holding job names.
type JobList struct {
	Jobs []string
}

// Add appends a job.
func (j *JobList) Add(name string) { j.Jobs = append(j.Jobs, name) }

// Snapshot returns a copy of the list.
func (j *JobList) Snapshot() any { return slices.Clone(j.Jobs) }

// Restore replaces the list with a snapshot.
func (j *JobList) Restore(s any) {
	jobs, _ := s.([]string)
	j.Jobs = slices.Clone(jobs)
}
