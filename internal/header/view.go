package header

import "fmt"

// View exposes the handful of fields the observation builder reads.
type View struct {
	h Header
}

// NewView wraps h.
func NewView(h Header) View { return View{h: h} }

func (v View) Filename() string {
	s, _ := v.h.String(KeyFilename)
	return s
}

func (v View) DateObs() (string, bool) { return v.nonEmpty("DATE-OBS") }

func (v View) ImageType() (string, bool) { return v.nonEmpty("IMAGETYP") }

func (v View) Filter() (string, bool) { return v.nonEmpty("FILTER") }

// Object keeps empty text: an empty target is a meaningful answer.
func (v View) Object() (string, bool) { return v.h.String("OBJECT") }

func (v View) Instrument() (string, bool) { return v.nonEmpty("INSTRUME") }

// Binning returns XBINNING and YBINNING. ok is false when both are absent;
// err is set when only one is present or either is not an integer.
func (v View) Binning() (x, y int, ok bool, err error) {
	x, xok, xerr := v.h.Int("XBINNING")
	y, yok, yerr := v.h.Int("YBINNING")
	switch {
	case xerr != nil:
		return 0, 0, false, xerr
	case yerr != nil:
		return 0, 0, false, yerr
	case !xok && !yok:
		return 0, 0, false, nil
	case !xok:
		return 0, 0, false, fmt.Errorf("XBINNING absent while YBINNING is set")
	case !yok:
		return 0, 0, false, fmt.Errorf("YBINNING absent while XBINNING is set")
	}
	return x, y, true, nil
}

// ExposureTime prefers EXPTIME and falls back to EXPOSURE.
func (v View) ExposureTime() (float64, bool) {
	for _, key := range []string{"EXPTIME", "EXPOSURE"} {
		if f, ok, err := v.h.Float(key); ok && err == nil {
			return f, true
		}
	}
	return 0, false
}

// WCSReference returns the world coordinates of the reference pixel.
func (v View) WCSReference() (ra, dec float64, ok bool) {
	ra, raOK, raErr := v.h.Float("CRVAL1")
	dec, decOK, decErr := v.h.Float("CRVAL2")
	if !raOK || !decOK || raErr != nil || decErr != nil {
		return 0, 0, false
	}
	return ra, dec, true
}

// ObjectCoordinates returns the sexagesimal telescope pointing.
func (v View) ObjectCoordinates() (ra, dec string, ok bool) {
	ra, raOK := v.nonEmpty("OBJCTRA")
	dec, decOK := v.nonEmpty("OBJCTDEC")
	return ra, dec, raOK && decOK
}

// TelescopeHorizontal returns the altitude and azimuth reported by the mount.
func (v View) TelescopeHorizontal() (alt, az float64, ok bool) {
	pairs := [][2]string{{"OBJCTALT", "OBJCTAZ"}, {"CENTALT", "CENTAZ"}}
	for _, p := range pairs {
		alt, altOK, altErr := v.h.Float(p[0])
		az, azOK, azErr := v.h.Float(p[1])
		if altOK && azOK && altErr == nil && azErr == nil {
			return alt, az, true
		}
	}
	return 0, 0, false
}

func (v View) Airmass() (float64, bool) { return v.float("AIRMASS") }

func (v View) PlateScale() (float64, bool) { return v.float(KeyPlateScale) }

func (v View) Odds() (float64, bool) { return v.float(KeyOdds) }

func (v View) float(key string) (float64, bool) {
	f, ok, err := v.h.Float(key)
	return f, ok && err == nil
}

func (v View) nonEmpty(key string) (string, bool) {
	s, ok := v.h.String(key)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
