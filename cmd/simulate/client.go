package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/healthline/booking/internal/appointment"
)

// apiResponse is the union of the response fields the simulator reads.
type apiResponse struct {
	Success       bool                      `json:"success"`
	Message       string                    `json:"message"`
	Token         string                    `json:"token"`
	AppointmentID string                    `json:"appointmentId"`
	Doctors       []appointment.Doctor      `json:"doctors"`
	Appointments  []appointment.Appointment `json:"appointments"`
}

type apiClient struct {
	baseURL string
	http    *http.Client
}

// call sends body as JSON (nil for GET) with the token under header.
func (c *apiClient) call(ctx context.Context, method, path, header, token string, body any) (*apiResponse, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(header, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, err)
	}
	return &out, nil
}

func (c *apiClient) registerUser(ctx context.Context, name, email, password string) (string, error) {
	resp, err := c.call(ctx, http.MethodPost, "/api/user/register", "", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("register %s: %s", email, resp.Message)
	}
	return resp.Token, nil
}

func (c *apiClient) adminLogin(ctx context.Context, email, password string) (string, error) {
	resp, err := c.call(ctx, http.MethodPost, "/api/admin/login", "", "", map[string]string{
		"email": email, "password": password,
	})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("admin login: %s", resp.Message)
	}
	return resp.Token, nil
}

func (c *apiClient) doctors(ctx context.Context) ([]appointment.Doctor, error) {
	resp, err := c.call(ctx, http.MethodGet, "/api/doctor/list", "", "", nil)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("list doctors: %s", resp.Message)
	}
	return resp.Doctors, nil
}

func (c *apiClient) allAppointments(ctx context.Context, adminToken string) ([]appointment.Appointment, error) {
	resp, err := c.call(ctx, http.MethodGet, "/api/admin/appointments", "atoken", adminToken, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("list appointments: %s", resp.Message)
	}
	return resp.Appointments, nil
}
