package pose

import "strings"

// Joint names an angle the extractor can produce.
type Joint string

const (
	JointLeftElbow     Joint = "left_elbow"
	JointRightElbow    Joint = "right_elbow"
	JointLeftKnee      Joint = "left_knee"
	JointRightKnee     Joint = "right_knee"
	JointLeftHip       Joint = "left_hip"
	JointRightHip      Joint = "right_hip"
	JointLeftShoulder  Joint = "left_shoulder"
	JointRightShoulder Joint = "right_shoulder"
	// JointBodyLine is the shoulder-hip-ankle line on the left side, used to
	// spot sagging or piked hips.
	JointBodyLine Joint = "body_line"
)

// jointLandmarks: outer point, vertex, outer point.
type jointLandmarks struct {
	a, vertex, c Landmark
}

var joints = []Joint{
	JointLeftElbow,
	JointRightElbow,
	JointLeftKnee,
	JointRightKnee,
	JointLeftHip,
	JointRightHip,
	JointLeftShoulder,
	JointRightShoulder,
	JointBodyLine,
}

var jointDefs = map[Joint]jointLandmarks{
	JointLeftElbow:     {LeftShoulder, LeftElbow, LeftWrist},
	JointRightElbow:    {RightShoulder, RightElbow, RightWrist},
	JointLeftKnee:      {LeftHip, LeftKnee, LeftAnkle},
	JointRightKnee:     {RightHip, RightKnee, RightAnkle},
	JointLeftHip:       {LeftShoulder, LeftHip, LeftKnee},
	JointRightHip:      {RightShoulder, RightHip, RightKnee},
	JointLeftShoulder:  {LeftElbow, LeftShoulder, LeftHip},
	JointRightShoulder: {RightElbow, RightShoulder, RightHip},
	JointBodyLine:      {LeftShoulder, LeftHip, LeftAnkle},
}

// Joints lists every joint the extractor knows, in a stable order.
func Joints() []Joint {
	out := make([]Joint, len(joints))
	copy(out, joints)
	return out
}

func (j Joint) Valid() bool {
	_, ok := jointDefs[j]
	return ok
}

// Landmarks returns the three landmarks the joint angle is measured from,
// the vertex being the second one.
func (j Joint) Landmarks() (a, vertex, c Landmark, ok bool) {
	def, ok := jointDefs[j]
	if !ok {
		return 0, 0, 0, false
	}
	return def.a, def.vertex, def.c, true
}

// DependsOn reports whether the joint angle needs the landmark.
func (j Joint) DependsOn(l Landmark) bool {
	def, ok := jointDefs[j]
	if !ok {
		return false
	}
	return def.a == l || def.vertex == l || def.c == l
}

// Mirror returns the same joint on the other side of the body.
// Joints without a side are returned unchanged.
func (j Joint) Mirror() Joint {
	s := string(j)
	switch {
	case strings.HasPrefix(s, "left_"):
		return Joint("right_" + strings.TrimPrefix(s, "left_"))
	case strings.HasPrefix(s, "right_"):
		return Joint("left_" + strings.TrimPrefix(s, "right_"))
	default:
		return j
	}
}

// JointAngles maps each measurable joint to its angle in degrees.
// Joints that could not be measured are absent.
type JointAngles map[Joint]float64

func (ja JointAngles) Get(j Joint) (float64, bool) {
	angle, ok := ja[j]
	return angle, ok
}

type ExtractOptions struct {
	// MinVisibility drops landmarks whose visibility score is below it.
	// Zero keeps every present landmark.
	MinVisibility float64
}

// ExtractAngles computes every joint angle whose three landmarks are present
// in the frame.
func ExtractAngles(frame Frame, opts ExtractOptions) JointAngles {
	angles := make(JointAngles, len(joints))
	for _, j := range joints {
		def := jointDefs[j]
		a, okA := frame.Position(def.a, opts.MinVisibility)
		b, okB := frame.Position(def.vertex, opts.MinVisibility)
		c, okC := frame.Position(def.c, opts.MinVisibility)
		if !okA || !okB || !okC {
			continue
		}
		angles[j] = AngleBetween(a, b, c)
	}
	return angles
}
