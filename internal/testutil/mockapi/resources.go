package mockapi

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Job is the resource served under /jobs
type Job struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Plan is an entry of GET /plans
type Plan struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Quota int    `json:"quota"`
}

var plans = []Plan{
	{ID: "free", Name: "Free", Quota: 10},
	{ID: "pro", Name: "Pro", Quota: 1000},
}

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Name < jobs[k].Name })
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var job Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil || job.Name == "" {
		writeError(w, http.StatusUnprocessableEntity, "invalid_job", "name is required")
		return
	}
	job.ID = uuid.NewString()
	if job.Status == "" {
		job.Status = "queued"
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	job, ok := s.jobs[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) updateJob(w http.ResponseWriter, r *http.Request) {
	var patch Job
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_job", "")
		return
	}

	id := chi.URLParam(r, "id")
	s.mu.Lock()
	job, ok := s.jobs[id]
	if ok {
		if patch.Name != "" {
			job.Name = patch.Name
		}
		if patch.Status != "" {
			job.Status = patch.Status
		}
		s.jobs[id] = job
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "job not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) adminResource(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"resource": chi.URLParam(r, "resource")})
}

func (s *Server) text(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("plain text body"))
}
