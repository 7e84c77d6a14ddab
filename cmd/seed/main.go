// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev facility already exists.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"gym-access-control/backend/internal/config"
	"gym-access-control/backend/internal/db"
	facilitydomain "gym-access-control/backend/internal/facility/domain"
	facilityrepo "gym-access-control/backend/internal/facility/repository"
	identitydomain "gym-access-control/backend/internal/identity/domain"
	identityrepo "gym-access-control/backend/internal/identity/repository"
	membershipdomain "gym-access-control/backend/internal/membership/domain"
	membershiprepo "gym-access-control/backend/internal/membership/repository"
	policydomain "gym-access-control/backend/internal/policy/domain"
	policyrepo "gym-access-control/backend/internal/policy/repository"
	"gym-access-control/backend/internal/security"
)

// offpeakRego matches the input shape built in internal/policy/engine: offpeak
// memberships may only enter between 10:00 and 16:00 UTC.
const offpeakRego = `package gym.entry

default allow = false
default reason = "outside_allowed_hours"

allow if {
	input.membership.type != "offpeak"
}

allow if {
	input.membership.type == "offpeak"
	input.time.hour >= 10
	input.time.hour < 16
}
`

// Fixed UUIDs so repeated runs hit the idempotency check. Every id column in
// the schema is UUID-typed.
const (
	devFacilityID    = "00000000-0000-4000-a000-000000000001"
	devStaffID       = "00000000-0000-4000-a000-000000000002"
	devMemberID      = "00000000-0000-4000-a000-000000000003"
	devSuspendedID   = "00000000-0000-4000-a000-000000000004"
	devOffpeakID     = "00000000-0000-4000-a000-000000000005"
	devMembership1ID = "00000000-0000-4000-a000-000000000011"
	devMembership2ID = "00000000-0000-4000-a000-000000000012"
	devMembership3ID = "00000000-0000-4000-a000-000000000013"
	devAssignmentID  = "00000000-0000-4000-a000-000000000021"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	facilities := facilityrepo.NewPostgresRepository(conn)
	identities := identityrepo.NewPostgresRepository(conn)
	memberships := membershiprepo.NewPostgresRepository(conn)
	policies := policyrepo.NewPostgresRepository(conn)

	ctx := context.Background()

	existing, err := facilities.GetByID(ctx, devFacilityID)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev facility exists). Skipping.")
		os.Exit(0)
	}

	now := time.Now().UTC()

	if err := facilities.Create(ctx, &facilitydomain.Facility{
		ID:        devFacilityID,
		Name:      "Downtown Dev Gym",
		CreatedAt: now,
	}); err != nil {
		log.Fatalf("create facility: %v", err)
	}

	people := []*identitydomain.Identity{
		{ID: devStaffID, Name: "Dana Staff", PhotoRef: "photos/dev-staff-001", CreatedAt: now},
		{ID: devMemberID, Name: "Morgan Member", PhotoRef: "photos/dev-member-001", CreatedAt: now},
		{ID: devSuspendedID, Name: "Sam Suspended", PhotoRef: "photos/dev-member-002", CreatedAt: now},
		{ID: devOffpeakID, Name: "Ola Offpeak", PhotoRef: "photos/dev-member-003", CreatedAt: now},
	}
	for _, p := range people {
		if err := identities.Create(ctx, p); err != nil {
			log.Fatalf("create identity %s: %v", p.ID, err)
		}
	}

	members := []*membershipdomain.Membership{
		{
			ID: devMembership1ID, IdentityID: devMemberID, FacilityID: devFacilityID,
			Type: "standard", Status: membershipdomain.StatusActive,
			ExpiresAt: now.AddDate(0, 6, 0), CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: devMembership2ID, IdentityID: devSuspendedID, FacilityID: devFacilityID,
			Type: "standard", Status: membershipdomain.StatusSuspended,
			ExpiresAt: now.AddDate(0, 6, 0), CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: devMembership3ID, IdentityID: devOffpeakID, FacilityID: devFacilityID,
			Type: "offpeak", Status: membershipdomain.StatusActive,
			ExpiresAt: now.AddDate(0, 6, 0), CreatedAt: now, UpdatedAt: now,
		},
	}
	for _, m := range members {
		if err := memberships.Create(ctx, m); err != nil {
			log.Fatalf("create membership %s: %v", m.ID, err)
		}
	}

	if err := facilities.CreateStaff(ctx, &facilitydomain.StaffAssignment{
		ID:         devAssignmentID,
		IdentityID: devStaffID,
		FacilityID: devFacilityID,
		Role:       facilitydomain.RoleManager,
		CreatedAt:  now,
	}); err != nil {
		log.Fatalf("create staff assignment: %v", err)
	}

	if err := policies.Upsert(ctx, &policydomain.FacilityPolicy{
		FacilityID: devFacilityID,
		Rego:       offpeakRego,
		UpdatedAt:  now,
	}); err != nil {
		log.Fatalf("upsert facility policy: %v", err)
	}

	log.Println("Seed applied.")

	// With a signing key configured, print dev JWTs so the API can be hit
	// immediately with curl.
	if cfg.JWTPrivateKey == "" {
		return
	}
	signer, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, 12*time.Hour)

	staffJWT, err := tokens.Issue(devStaffID, "Dana Staff", "staff")
	if err != nil {
		log.Fatalf("mint staff jwt: %v", err)
	}
	memberJWT, err := tokens.Issue(devMemberID, "Morgan Member", "member")
	if err != nil {
		log.Fatalf("mint member jwt: %v", err)
	}
	log.Printf("dev staff JWT (%s): %s", devStaffID, staffJWT)
	log.Printf("dev member JWT (%s): %s", devMemberID, memberJWT)
}
