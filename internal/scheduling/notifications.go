package scheduling

import (
	"context"

	"github.com/kindnest/kindnest-api/pkg/models"
	"github.com/kindnest/kindnest-api/pkg/notify"
)

func (s *Service) donor(ctx context.Context, sc *models.Schedule) *models.User {
	u, err := s.store.GetUser(ctx, sc.DonorID)
	if err != nil {
		s.log.Warn("load donor for notification", "schedule", sc.ID, "donor", sc.DonorID, "error", err)
		return &models.User{}
	}
	return u
}

func scheduleData(sc *models.Schedule, donor *models.User) map[string]string {
	return map[string]string{
		"Type":    string(sc.Type),
		"Date":    sc.DateString(),
		"Time":    sc.Time,
		"Address": sc.Address,
		"Phone":   models.ResolveContact(sc.Phone, donor.Phone),
	}
}

func with(base map[string]string, kv ...string) map[string]string {
	out := make(map[string]string, len(base)+len(kv)/2)
	for k, v := range base {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

func email(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (s *Service) notifyAssignment(ctx context.Context, sc *models.Schedule, v *models.Volunteer, codeIssued bool) {
	if s.notifier == nil {
		return
	}
	donor := s.donor(ctx, sc)
	base := scheduleData(sc, donor)

	s.notifier.Send(notify.Notification{
		Event:    notify.EventVolunteerAssigned,
		Audience: notify.AudienceVolunteer,
		To:       email(v.Email),
		Data:     with(base, "Name", v.Name),
	})
	s.notifier.Send(notify.Notification{
		Event:    notify.EventPickupAssigned,
		Audience: notify.AudienceDonor,
		To:       donor.Email,
		Data:     with(base, "Name", donor.Name, "Volunteer", v.Name, "VolunteerPhone", v.Phone),
	})
	if codeIssued && sc.OTP != nil {
		s.notifier.Send(notify.Notification{
			Event:    notify.EventCodeIssued,
			Audience: notify.AudienceDonor,
			To:       donor.Email,
			Data:     with(base, "Name", donor.Name, "Code", *sc.OTP),
		})
	}
}

// notifyCancellation tells the other parties about a cancellation. before is
// the schedule as it was prior to cancelling.
func (s *Service) notifyCancellation(ctx context.Context, before *models.Schedule, actor Actor) {
	if s.notifier == nil {
		return
	}
	donor := s.donor(ctx, before)
	base := scheduleData(before, donor)

	if actor.IsAdmin() {
		base = with(base, "CancelledBy", "the coordinator")
		s.notifier.Send(notify.Notification{
			Event:    notify.EventScheduleCancelled,
			Audience: notify.AudienceDonor,
			To:       donor.Email,
			Data:     with(base, "Name", donor.Name),
		})
		s.notifyVolunteerCancelled(ctx, before, base)
		return
	}

	name := "the assigned volunteer"
	if v, err := s.store.GetVolunteer(ctx, actor.ID); err == nil {
		name = v.Name
	}
	base = with(base, "CancelledBy", name)
	s.notifier.Send(notify.Notification{
		Event:    notify.EventScheduleCancelled,
		Audience: notify.AudienceAdmin,
		Data:     base,
	})
	s.notifier.Send(notify.Notification{
		Event:    notify.EventScheduleCancelled,
		Audience: notify.AudienceDonor,
		To:       donor.Email,
		Data:     with(base, "Name", donor.Name),
	})
}

// notifyVolunteerCancelled tells the volunteer who held before that the
// pickup is off.
func (s *Service) notifyVolunteerCancelled(ctx context.Context, before *models.Schedule, base map[string]string) {
	if s.notifier == nil || before.AssignedVolunteerID == nil {
		return
	}
	v, err := s.store.GetVolunteer(ctx, *before.AssignedVolunteerID)
	if err != nil {
		s.log.Warn("load volunteer for notification", "schedule", before.ID, "error", err)
		return
	}
	s.notifier.Send(notify.Notification{
		Event:    notify.EventScheduleCancelled,
		Audience: notify.AudienceVolunteer,
		To:       email(v.Email),
		Data:     with(base, "Name", v.Name),
	})
}
